// Package discord posts execution events to a Discord webhook as embeds.
package discord

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
	providerName = "discord"
	// Discord rejects embeds with more than 25 fields.
	maxFields = 25

	colorCreated   = 0x2ECC71
	colorUpdated   = 0xF39C12
	colorCancelled = 0xE74C3C
)

// Notifier implements notifier.Notifier for Discord.
type Notifier struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewNotifier returns a Discord notifier. username overrides the webhook's
// display name when set.
func NewNotifier(webhookURL, username string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		username:   username,
		client:     &http.Client{Timeout: 10 * time.Second, Transport: otel.HTTPTransport(nil)},
	}
}

func (n *Notifier) Name() string { return providerName }

type payload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Color       int     `json:"color"`
	Fields      []field `json:"fields,omitempty"`
	Footer      *footer `json:"footer,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type footer struct {
	Text string `json:"text"`
}

func (n *Notifier) Send(ctx context.Context, ev notifier.Event) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}
	body, err := json.Marshal(payload{Username: n.username, Embeds: []embed{toEmbed(ev)}})
	if err != nil {
		return fmt.Errorf("discord marshal: %w", err)
	}
	return notifier.Post(ctx, n.client, providerName, n.webhookURL, body, nil)
}

func toEmbed(ev notifier.Event) embed {
	e := embed{
		Title:       strings.ReplaceAll(ev.Type, "_", " "),
		Description: ev.Summary,
		Color:       color(ev.Type),
	}
	if ev.BusinessName != "" {
		e.Title += " · " + ev.BusinessName
	}
	if !ev.OccurredAt.IsZero() {
		e.Timestamp = ev.OccurredAt.UTC().Format(time.RFC3339)
	}
	for _, k := range slices.Sorted(maps.Keys(ev.Details)) {
		if len(e.Fields) == maxFields {
			break
		}
		e.Fields = append(e.Fields, field{Name: k, Value: ev.Details[k], Inline: true})
	}
	if ev.ConfirmationCode != "" {
		e.Footer = &footer{Text: "Confirmation " + ev.ConfirmationCode}
	}
	return e
}

func color(eventType string) int {
	switch {
	case strings.HasSuffix(eventType, "_cancelled"):
		return colorCancelled
	case strings.HasSuffix(eventType, "_updated"):
		return colorUpdated
	default:
		return colorCreated
	}
}
