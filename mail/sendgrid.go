// Package mail delivers one-time passcodes to account email addresses.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmcleod/gatehouse/identity"
)

const defaultBaseURL = "https://api.sendgrid.com/v3/mail/send"

// SendGrid dispatches reset codes through the SendGrid v3 mail API using a
// dynamic template. The template receives username, otp, and email fields.
type SendGrid struct {
	apiKey     string
	templateID string
	from       string
	baseURL    string
	client     *http.Client
}

var _ identity.Sender = (*SendGrid)(nil)

// NewSendGrid creates a SendGrid sender. from is the sender address shown to
// the recipient.
func NewSendGrid(apiKey, templateID, from string) *SendGrid {
	return &SendGrid{
		apiKey:     apiKey,
		templateID: templateID,
		from:       from,
		baseURL:    defaultBaseURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type sgAddress struct {
	Email string `json:"email"`
}

type sgPersonalization struct {
	To                  []sgAddress       `json:"to"`
	DynamicTemplateData map[string]string `json:"dynamic_template_data"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	TemplateID       string              `json:"template_id"`
}

func (s *SendGrid) SendOTP(ctx context.Context, code, username, email string) error {
	payload := sgMail{
		Personalizations: []sgPersonalization{{
			To: []sgAddress{{Email: email}},
			DynamicTemplateData: map[string]string{
				"username": username,
				"otp":      code,
				"email":    email,
			},
		}},
		From:       sgAddress{Email: s.from},
		TemplateID: s.templateID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid responded %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes the code to the log instead of sending mail. Development
// only: the code appears in plain text.
type LogSender struct {
	Logger *slog.Logger
}

var _ identity.Sender = LogSender{}

func (s LogSender) SendOTP(ctx context.Context, code, username, email string) error {
	s.Logger.InfoContext(ctx, "one-time passcode issued",
		"username", username, "email", email, "code", code)
	return nil
}
