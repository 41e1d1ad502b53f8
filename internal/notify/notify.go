// Package notify posts run summaries to Slack.
package notify

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/tech-news-daily/apptrack/internal/pipeline"
)

// slackAPI is the slice of the Slack client the notifier uses.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts run summaries to a Slack channel. A nil Notifier is valid
// and does nothing, so callers never guard on configuration.
type Notifier struct {
	client  slackAPI
	channel string
}

// NewFromEnv builds a notifier from SLACK_BOT_TOKEN and SLACK_CHANNEL_ID.
// Returns nil when either is unset.
func NewFromEnv() *Notifier {
	token := os.Getenv("SLACK_BOT_TOKEN")
	channel := os.Getenv("SLACK_CHANNEL_ID")
	if token == "" || channel == "" {
		log.Debug().Msg("Slack notifications not configured, skipping")
		return nil
	}
	return &Notifier{client: slack.New(token), channel: channel}
}

// RunSummary posts the outcome of one ranking run. Delivery failures are
// logged and swallowed; a run never fails because Slack was unreachable.
func (n *Notifier) RunSummary(ctx context.Context, report pipeline.RunReport) {
	if n == nil {
		return
	}

	blocks, fallback := buildRunBlocks(report)
	_, _, err := n.client.PostMessageContext(
		ctx,
		n.channel,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(fallback, false),
	)
	if err != nil {
		log.Warn().
			Err(err).
			Str("run_id", report.RunID).
			Msg("Failed to send Slack run summary")
		return
	}

	log.Info().
		Str("run_id", report.RunID).
		Str("channel", n.channel).
		Msg("Slack run summary sent")
}

func buildRunBlocks(report pipeline.RunReport) ([]slack.Block, string) {
	var emoji, heading string
	switch report.Status() {
	case "failed":
		emoji = ":x:"
		heading = "App ranking run failed"
	case "partial":
		emoji = ":warning:"
		heading = "App ranking run completed with errors"
	default:
		emoji = ":white_check_mark:"
		heading = "App ranking run complete"
	}

	persisted := 0
	lines := make([]string, 0, len(report.Lists))
	for _, list := range report.Lists {
		switch {
		case list.Err != nil:
			lines = append(lines, fmt.Sprintf("• %s: failed (%v)", list.Kind, list.Err))
		case list.Skipped:
			lines = append(lines, fmt.Sprintf("• %s: skipped, no data", list.Kind))
		default:
			lines = append(lines, fmt.Sprintf("• %s: %d rows", list.Kind, list.Rows))
			persisted += list.Rows
		}
	}

	start, end := report.Window.Dates()
	footer := fmt.Sprintf("Window %s to %s, finished in %s", start, end, formatDuration(report.Duration))

	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(
				"mrkdwn",
				fmt.Sprintf("%s *%s*", emoji, heading),
				false,
				false,
			),
			nil,
			nil,
		),
	}
	if len(lines) > 0 {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", strings.Join(lines, "\n"), false, false),
			nil,
			nil,
		))
	}
	blocks = append(blocks, slack.NewSectionBlock(
		slack.NewTextBlockObject("mrkdwn", footer, false, false),
		nil,
		nil,
	))

	fallback := fmt.Sprintf("%s: %d rows persisted", heading, persisted)
	return blocks, fallback
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
