// Package slack posts execution events to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/otel"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/notifier"
)

const (
	providerName = "slack"
	// Block Kit caps a section at ten fields.
	maxFields = 10
)

// Notifier implements notifier.Notifier for Slack.
type Notifier struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewNotifier returns a Slack notifier. username overrides the webhook's
// default bot name when set.
func NewNotifier(webhookURL, username string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		username:   username,
		client:     &http.Client{Timeout: 10 * time.Second, Transport: otel.HTTPTransport(nil)},
	}
}

func (n *Notifier) Name() string { return providerName }

type message struct {
	Text     string  `json:"text"`
	Username string  `json:"username,omitempty"`
	Blocks   []block `json:"blocks"`
}

type block struct {
	Type     string    `json:"type"`
	Text     *textObj  `json:"text,omitempty"`
	Fields   []textObj `json:"fields,omitempty"`
	Elements []textObj `json:"elements,omitempty"`
}

type textObj struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(s string) textObj { return textObj{Type: "mrkdwn", Text: s} }

// Send renders ev as a header, a summary section with one field per detail
// and, when present, the confirmation code.
func (n *Notifier) Send(ctx context.Context, ev notifier.Event) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}
	body, err := json.Marshal(render(ev, n.username))
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}
	return notifier.Post(ctx, n.client, providerName, n.webhookURL, body, nil)
}

func render(ev notifier.Event, username string) message {
	title := label(ev.Type) + " " + headline(ev)
	summary := block{Type: "section", Text: &textObj{Type: "mrkdwn", Text: ev.Summary}}
	for _, k := range slices.Sorted(maps.Keys(ev.Details)) {
		if len(summary.Fields) == maxFields {
			break
		}
		summary.Fields = append(summary.Fields, mrkdwn("*"+k+"*\n"+ev.Details[k]))
	}

	msg := message{
		Text:     title,
		Username: username,
		Blocks: []block{
			{Type: "header", Text: &textObj{Type: "plain_text", Text: title}},
			summary,
		},
	}
	if ev.ConfirmationCode != "" {
		msg.Blocks = append(msg.Blocks, block{
			Type:     "context",
			Elements: []textObj{mrkdwn("Confirmation `" + ev.ConfirmationCode + "`")},
		})
	}
	return msg
}

// headline turns "booking_created" into "Booking created at <business>".
func headline(ev notifier.Event) string {
	kind := strings.ReplaceAll(ev.Type, "_", " ")
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	if ev.BusinessName == "" {
		return kind
	}
	return kind + " at " + ev.BusinessName
}

func label(eventType string) string {
	_, verb, _ := strings.Cut(eventType, "_")
	switch verb {
	case "cancelled":
		return "[CANCELLED]"
	case "updated":
		return "[UPDATED]"
	default:
		return "[NEW]"
	}
}
