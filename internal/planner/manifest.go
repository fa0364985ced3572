package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var dependencySections = []string{"dependencies", "devDependencies"}

// bumpDependency rewrites the version spec for dep inside a package.json
// document and returns the updated bytes plus the prior version with any
// range prefix stripped. The rewrite is a targeted string replacement so
// the file's formatting, key order and indentation survive untouched. The
// dependency is looked up in "dependencies" first, then "devDependencies".
func bumpDependency(content []byte, dep, version string) ([]byte, string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, "", fmt.Errorf("parsing package.json: %w", err)
	}

	entryRe := regexp.MustCompile(`("` + regexp.QuoteMeta(dep) + `"\s*:\s*")([^"]*)(")`)

	for _, section := range dependencySections {
		raw, ok := doc[section]
		if !ok {
			continue
		}
		var deps map[string]string
		if err := json.Unmarshal(raw, &deps); err != nil {
			return nil, "", fmt.Errorf("parsing %s: %w", section, err)
		}
		spec, ok := deps[dep]
		if !ok {
			continue
		}

		start, end, err := sectionBounds(content, section)
		if err != nil {
			return nil, "", err
		}
		loc := entryRe.FindSubmatchIndex(content[start:end])
		if loc == nil {
			return nil, "", fmt.Errorf("%s entry for %s not found in source text", section, dep)
		}

		replacement := version
		if version != LatestVersion {
			replacement = rangePrefix(spec) + version
		}

		var out bytes.Buffer
		out.Write(content[:start+loc[4]])
		out.WriteString(replacement)
		out.Write(content[start+loc[5]:])
		return out.Bytes(), strings.TrimLeft(spec, "^~>=< v"), nil
	}

	return nil, "", fmt.Errorf("%s not present in dependencies or devDependencies", dep)
}

// sectionBounds locates the byte range of a top-level object value, e.g. the
// braces of "dependencies": { ... }, by brace matching from the key. The key
// is located structurally so the same word inside a string value (a
// description, a script) cannot mis-anchor the window.
func sectionBounds(content []byte, section string) (int, int, error) {
	idx := topLevelKey(content, section)
	if idx < 0 {
		return 0, 0, fmt.Errorf("section %s not found", section)
	}
	open := bytes.IndexByte(content[idx:], '{')
	if open < 0 {
		return 0, 0, fmt.Errorf("section %s has no object value", section)
	}
	start := idx + open
	depth := 0
	inString := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("section %s is unterminated", section)
}

// topLevelKey returns the offset of the quoted key in the document's root
// object, or -1. Strings are skipped as units and only depth-1 occurrences
// followed by a colon count, so matches inside values or nested objects are
// ignored.
func topLevelKey(content []byte, key string) int {
	quoted := []byte(`"` + key + `"`)
	depth := 0
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '"':
			start := i
			i++
			for i < len(content) && content[i] != '"' {
				if content[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(content) || depth != 1 || !bytes.Equal(content[start:i+1], quoted) {
				continue
			}
			j := i + 1
			for j < len(content) && (content[j] == ' ' || content[j] == '\t' || content[j] == '\n' || content[j] == '\r') {
				j++
			}
			if j < len(content) && content[j] == ':' {
				return start
			}
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	return -1
}
