// Package mailer delivers transactional email for the auth flow.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

// Message is one outgoing email. Text is the plain-text alternative.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends a message or reports why it could not.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #222;">
    <h2>Verify your {{.AppName}} account</h2>
    <p>Hi {{.Name}},</p>
    <p>Your verification code is:</p>
    <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
    <p>The code expires in {{.ExpiresIn}}. If you did not create an account, ignore this email.</p>
  </body>
</html>
`))

type otpData struct {
	AppName   string
	Name      string
	Code      string
	ExpiresIn string
}

// OTPMessage renders the verification email for code.
func OTPMessage(appName, to, name, code string, ttl time.Duration) (Message, error) {
	data := otpData{
		AppName:   appName,
		Name:      name,
		Code:      code,
		ExpiresIn: fmt.Sprintf("%d minutes", int(ttl.Minutes())),
	}

	var html bytes.Buffer
	if err := otpTemplate.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render otp email: %w", err)
	}

	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your %s verification code", appName),
		HTML:    html.String(),
		Text: fmt.Sprintf("Your %s verification code is %s. It expires in %s.",
			appName, code, data.ExpiresIn),
	}, nil
}
