package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Slack posts attachment-style messages to a Slack-compatible webhook.
type Slack struct {
	Client *http.Client
}

func NewSlack() *Slack {
	return &Slack{Client: &http.Client{Timeout: 10 * time.Second}}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Fallback string       `json:"fallback"`
	Color    string       `json:"color"`
	Title    string       `json:"title"`
	Text     string       `json:"text"`
	Fields   []slackField `json:"fields"`
	Footer   string       `json:"footer"`
	TS       int64        `json:"ts"`
}

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

func (s *Slack) Send(ctx context.Context, webhookURL string, m Message) error {
	if webhookURL == "" {
		return errors.New("empty slack webhook url")
	}

	payload := slackPayload{Attachments: []slackAttachment{{
		Fallback: m.Title,
		Color:    SeverityColor(m.Next),
		Title:    m.Title,
		Text:     m.Body,
		Fields: []slackField{
			{Title: "Service", Value: m.Service.Name, Short: true},
			{Title: "URL", Value: m.Service.URL, Short: true},
			{Title: "New Status", Value: strings.ToUpper(string(m.Next)), Short: true},
			{Title: "Previous Status", Value: strings.ToUpper(string(m.Previous)), Short: true},
		},
		Footer: "PulseWatch Monitoring",
		TS:     m.At.Unix(),
	}}}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errors.New("slack non-2xx: " + resp.Status)
	}
	return nil
}
