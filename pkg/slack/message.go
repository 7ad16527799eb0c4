package slack

import (
	"fmt"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

var slaEmoji = map[string]string{
	"warning":  ":warning:",
	"critical": ":rotating_light:",
	"exceeded": ":hourglass:",
}

// sagaFingerprint is embedded in every notification for a saga so later
// messages can thread onto the first one via history search.
func sagaFingerprint(sagaID string) string {
	return "saga:" + sagaID
}

func workflowURL(workflowID, dashboardURL string) string {
	return fmt.Sprintf("%s/workflows/%s", dashboardURL, workflowID)
}

// BuildWorkflowFailedMessage creates Block Kit blocks for a workflow
// failure notification.
func BuildWorkflowFailedMessage(input WorkflowFailedInput, dashboardURL string) []goslack.Block {
	headerText := ":x: *Workflow Failed*"
	if input.TemplateName != "" {
		headerText += fmt.Sprintf(" — `%s`", input.TemplateName)
	}
	if input.Error != "" {
		headerText += fmt.Sprintf("\n\n*Error:*\n%s", truncateForSlack(input.Error))
	}

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
	}

	detail := fmt.Sprintf("Completed steps: %d", len(input.CompletedSteps))
	if len(input.CompletedSteps) > 0 {
		detail = fmt.Sprintf("Completed steps: %s", strings.Join(input.CompletedSteps, ", "))
	}
	detail += fmt.Sprintf(" • Duration: %s", (time.Duration(input.DurationMS) * time.Millisecond).Round(time.Millisecond))
	blocks = append(blocks, goslack.NewContextBlock("",
		goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(detail), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, sagaFingerprint(input.SagaID), false, false),
	))

	if dashboardURL != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Workflow", false, false))
		btn.URL = workflowURL(input.WorkflowID, dashboardURL)
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}
	return blocks
}

// BuildSLAMessage creates Block Kit blocks for an SLA transition
// notification.
func BuildSLAMessage(input SLATransitionInput, dashboardURL string) []goslack.Block {
	emoji := slaEmoji[input.New]
	if emoji == "" {
		emoji = ":question:"
	}
	headerText := fmt.Sprintf("%s *SLA %s*", emoji, input.New)
	headerText += fmt.Sprintf("\nWorkflow has been running for %s (was %s).",
		(time.Duration(input.DurationMS) * time.Millisecond).Round(time.Second), input.Old)

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
		goslack.NewContextBlock("",
			goslack.NewTextBlockObject(goslack.MarkdownType, sagaFingerprint(input.SagaID), false, false),
		),
	}

	if dashboardURL != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Workflow", false, false))
		btn.URL = workflowURL(input.WorkflowID, dashboardURL)
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}
	return blocks
}

// truncateForSlack keeps block text under Slack's limit without splitting
// multi-byte runes.
func truncateForSlack(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBlockTextLength {
		return text
	}
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated — view full details in dashboard)_"
}
