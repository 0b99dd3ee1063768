// Package email delivers login codes and group invitations.
package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
)

// Message is a single outgoing email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Mailer composes the application's emails and hands them to a Sender.
type Mailer struct {
	sender  Sender
	baseURL string
}

func NewMailer(sender Sender, baseURL string) *Mailer {
	return &Mailer{sender: sender, baseURL: baseURL}
}

// SendLoginCode sends a one-time sign-in code.
func (m *Mailer) SendLoginCode(ctx context.Context, to, code string) error {
	text := fmt.Sprintf("Your Giftlist sign-in code is %s.\n\nIt expires in 15 minutes.", code)
	body := fmt.Sprintf(
		`<p>Your Giftlist sign-in code is <b style="font-size:18px;">%s</b>.</p><p>It expires in 15 minutes.</p>`,
		html.EscapeString(code),
	)
	return m.sender.Send(ctx, Message{
		To:       to,
		Subject:  "Your Giftlist sign-in code",
		TextBody: text,
		HTMLBody: body,
	})
}

// InviteLink returns the link a recipient follows to accept an invite.
func (m *Mailer) InviteLink(token string) string {
	return fmt.Sprintf("%s/invite/%s", m.baseURL, url.PathEscape(token))
}

// SendInvite sends an invitation to join groupName.
func (m *Mailer) SendInvite(ctx context.Context, to, groupName, token string) error {
	link := m.InviteLink(token)
	text := fmt.Sprintf("You've been invited to join %q on Giftlist.\n\nAccept the invitation:\n%s", groupName, link)
	body := fmt.Sprintf(
		`<p>You've been invited to join <b>%s</b> on Giftlist.</p><p><a href="%s">Accept the invitation</a></p>`,
		html.EscapeString(groupName), html.EscapeString(link),
	)
	return m.sender.Send(ctx, Message{
		To:       to,
		Subject:  fmt.Sprintf("You've been invited to %s on Giftlist", groupName),
		TextBody: text,
		HTMLBody: body,
	})
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no mail transport is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, m Message) error {
	s.Logger.InfoContext(ctx, "email not sent, no transport configured",
		"to", m.To, "subject", m.Subject, "body", m.TextBody)
	return nil
}
