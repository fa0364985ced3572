package main

import "github.com/kev765740/dependencywarden/cmd"

func main() {
	cmd.Execute()
}
