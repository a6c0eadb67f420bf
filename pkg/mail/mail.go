// Package mail sends share links through MailerSend.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
)

const (
	fromName    = "Crystal Ball Fortunes"
	subject     = "Your crystal ball fortune"
	sendTimeout = 5 * time.Second
)

var ErrInvalidAddress = errors.New("mail: invalid recipient address")

var htmlBody = template.Must(template.New("mail").Parse(
	`<h1>The crystal ball has spoken</h1><p>{{.Fortune}}</p><p><a href="{{.URL}}">Open your fortune</a></p>`))

type Sender struct {
	from string
	ms   *mailersend.Mailersend
	send func(ctx context.Context, msg *mailersend.Message) error
}

func NewSender(apiKey, from string) *Sender {
	s := &Sender{from: from, ms: mailersend.NewMailersend(apiKey)}
	s.send = func(ctx context.Context, msg *mailersend.Message) error {
		_, err := s.ms.Email.Send(ctx, msg)
		return err
	}
	return s
}

// SendShareLink mails the share URL and the fortune text to one recipient.
func (s *Sender) SendShareLink(ctx context.Context, to string, url models.ShareURL, fortune models.Fortune) error {
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, to)
	}
	msg, err := s.message(to, url, fortune)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *Sender) message(to string, url models.ShareURL, fortune models.Fortune) (*mailersend.Message, error) {
	var html bytes.Buffer
	if err := htmlBody.Execute(&html, struct {
		Fortune string
		URL     string
	}{string(fortune), string(url)}); err != nil {
		return nil, fmt.Errorf("failed to render email: %w", err)
	}

	message := s.ms.Email.NewMessage()
	message.SetFrom(mailersend.From{Name: fromName, Email: s.from})
	message.SetRecipients([]mailersend.Recipient{{Email: to}})
	message.SetSubject(subject)
	message.SetHTML(html.String())
	message.SetText(fmt.Sprintf("%s\n\nyour fortune --> %s", fortune, url))
	return message, nil
}
