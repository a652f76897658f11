// Package mailer sends the transactional emails of the application. Message
// bodies are plain formatted strings; delivery is delegated to a Sender.
package mailer

import (
	"context"
	"fmt"

	"github.com/yousefihsm/natours/internal/utils"
)

// Service is what the application services depend on.
type Service interface {
	SendWelcome(ctx context.Context, toEmail, toName, url string) error
	SendPasswordReset(ctx context.Context, toEmail, toName, resetURL string) error
	SendBookingConfirmation(ctx context.Context, toEmail, toName, tourName string, price float64) error
}

// Message is one outgoing email.
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a composed message. It returns the provider message id
// when one is available.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Mailer composes messages and hands them to a Sender.
type Mailer struct {
	sender Sender
}

func New(sender Sender) *Mailer {
	return &Mailer{sender: sender}
}

func (m *Mailer) SendWelcome(ctx context.Context, toEmail, toName, url string) error {
	first := utils.FirstName(toName)
	text := fmt.Sprintf("Hi %s,\n\nWelcome to Natours, we're glad to have you.\nUpload a profile photo and start exploring: %s\n", first, url)
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Welcome to Natours, we're glad to have you.</p>
<p><a href="%s">Upload a profile photo</a> and start exploring.</p>`, first, url)

	_, err := m.sender.Send(ctx, Message{
		ToEmail: toEmail,
		ToName:  toName,
		Subject: "Welcome to the Natours Family!",
		Text:    text,
		HTML:    html,
	})
	return err
}

func (m *Mailer) SendPasswordReset(ctx context.Context, toEmail, toName, resetURL string) error {
	first := utils.FirstName(toName)
	text := fmt.Sprintf("Hi %s,\n\nForgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\nIf you didn't forget your password, please ignore this email.\n", first, resetURL)
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:</p>
<p><a href="%s">%s</a></p>
<p>If you didn't forget your password, please ignore this email.</p>`, first, resetURL, resetURL)

	_, err := m.sender.Send(ctx, Message{
		ToEmail: toEmail,
		ToName:  toName,
		Subject: "Your password reset token (valid for only 10 minutes)",
		Text:    text,
		HTML:    html,
	})
	return err
}

func (m *Mailer) SendBookingConfirmation(ctx context.Context, toEmail, toName, tourName string, price float64) error {
	first := utils.FirstName(toName)
	text := fmt.Sprintf("Hi %s,\n\nYour booking for %s is confirmed. Amount paid: $%.2f.\n", first, tourName, price)
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your booking for <b>%s</b> is confirmed. Amount paid: $%.2f.</p>`, first, tourName, price)

	_, err := m.sender.Send(ctx, Message{
		ToEmail: toEmail,
		ToName:  toName,
		Subject: "Your Natours booking is confirmed",
		Text:    text,
		HTML:    html,
	})
	return err
}
