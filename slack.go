package main

import (
	"log"

	"github.com/slack-go/slack"
)

// NotifyRunComplete posts a run summary to the configured Slack channel.
// Notification is best-effort and optional: a missing token or channel
// disables it, and posting errors never fail the run.
func NotifyRunComplete(cfg Config, text string) {
	if cfg.SlackBotToken == "" || cfg.SlackChannelID == "" {
		return
	}
	api := slack.New(cfg.SlackBotToken)
	_, _, err := api.PostMessage(cfg.SlackChannelID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("slack notify error: %v", err)
		return
	}
	log.Printf("slack notify posted channel=%s", cfg.SlackChannelID)
}
