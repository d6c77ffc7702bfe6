// Package email delivers digests over SMTP as multipart plain text and HTML.
package email

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	mail "github.com/wneessen/go-mail"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Name is the channel name profiles use to select this deliverer.
const Name = "email"

// DefaultTimeout bounds the SMTP dialogue when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

//go:embed digest.html.tmpl
var htmlSource string

var htmlTemplate = template.Must(template.New("digest").Parse(htmlSource))

// Config holds SMTP settings.
type Config struct {
	Host    string
	Port    int
	From    string
	User    string
	Pass    string
	Subject string
	Timeout time.Duration
}

type sendFunc func(ctx context.Context, msg *mail.Msg) error

// Sender implements driven.Deliverer over SMTP.
type Sender struct {
	cfg  Config
	send sendFunc
	now  func() time.Time
}

var _ driven.Deliverer = (*Sender)(nil)

// NewSender creates an SMTP sender. STARTTLS is used when the server offers
// it.
func NewSender(cfg Config) *Sender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Subject == "" {
		cfg.Subject = "Industrial AI Digest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	s := &Sender{cfg: cfg, now: time.Now}
	s.send = s.dialAndSend
	return s
}

// Name returns the channel name.
func (s *Sender) Name() string {
	return Name
}

// Deliver sends the payload to the addresses in the profile's email
// destination.
func (s *Sender) Deliver(ctx context.Context, profile domain.RecipientProfile, payload domain.DeliveryPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := recipients(profile.Destination(Name))
	if len(to) == 0 {
		return fmt.Errorf("%w: no email address for profile %s", domain.ErrMissingField, profile.ID)
	}
	if s.cfg.Host == "" || s.cfg.From == "" {
		return fmt.Errorf("%w: smtp host and sender are required", domain.ErrMissingField)
	}

	day := payload.Run.StartedAt
	if day.IsZero() {
		day = s.now()
	}
	msg, err := s.Compose(profile, payload, to, day)
	if err != nil {
		return err
	}

	logger.Info("email: sending digest for %s to %d recipients", profile.ID, len(to))
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

// Compose builds the message: a plain text body with an HTML alternative,
// both quoted-printable so no line exceeds the SMTP limit.
func (s *Sender) Compose(profile domain.RecipientProfile, payload domain.DeliveryPayload, to []string, day time.Time) (*mail.Msg, error) {
	view := newDigestView(profile, payload, day)

	var html bytes.Buffer
	if err := htmlTemplate.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("rendering html digest: %w", err)
	}

	msg := mail.NewMsg(mail.WithEncoding(mail.EncodingQP), mail.WithCharset(mail.CharsetUTF8))
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("%w: sender %q: %v", domain.ErrInvalidInput, s.cfg.From, err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("%w: recipients for %s: %v", domain.ErrInvalidInput, profile.ID, err)
	}
	msg.Subject(fmt.Sprintf("%s %s (%d)", day.Format("2006-01-02"), s.cfg.Subject, len(payload.Primary)))
	msg.SetDateWithValue(day)
	msg.SetBodyString(mail.TypeTextPlain, renderText(view))
	msg.AddAlternativeString(mail.TypeTextHTML, html.String())
	return msg, nil
}

// dialAndSend opens one SMTP session per digest, bounded by ctx and the
// configured timeout.
func (s *Sender) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Pass),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func recipients(destination string) []string {
	var out []string
	for _, addr := range strings.Split(destination, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
