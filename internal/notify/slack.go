package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/slack-go/slack"

	"github.com/kev765740/dependencywarden/internal/config"
)

// SlackChannel posts notifications to a Slack channel via the Web API.
type SlackChannel struct {
	cfg    config.SlackNotifyConfig
	client *slack.Client
}

// NewSlack creates a SlackChannel from cfg.
func NewSlack(cfg config.SlackNotifyConfig) *SlackChannel {
	s := &SlackChannel{cfg: cfg}
	if cfg.Token != "" {
		s.client = slack.New(cfg.Token)
	}
	return s
}

func (s *SlackChannel) Name() string       { return "slack" }
func (s *SlackChannel) IsConfigured() bool { return s.cfg.Token != "" && s.cfg.Channel != "" }

func (s *SlackChannel) Send(ctx context.Context, evt Event) error {
	title := evt.Title
	if evt.URL != "" {
		title = fmt.Sprintf("<%s|%s>", evt.URL, evt.Title)
	}
	attachment := slack.Attachment{
		Color:     severityColor(evt.Severity),
		Title:     evt.Title,
		TitleLink: evt.URL,
		Text:      evt.Body,
		Footer:    "dependencywarden",
		Ts:        json.Number(fmt.Sprintf("%d", time.Now().Unix())),
	}
	_, _, err := s.client.PostMessageContext(ctx, s.cfg.Channel,
		slack.MsgOptionText(title, false),
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		return fmt.Errorf("posting to slack channel %s: %w", s.cfg.Channel, err)
	}
	return nil
}

func severityColor(sev string) string {
	switch sev {
	case "critical":
		return "#FF0000"
	case "high":
		return "#FF6600"
	case "medium":
		return "#FFAA00"
	case "low":
		return "#0099FF"
	default:
		return "#888888"
	}
}
