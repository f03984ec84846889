package mail

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPSender sends outbound mail through a plain SMTP relay, for
// deployments where Graph application permissions for Mail.Send aren't
// available. The pipeline's outbound producer tries the Graph client first
// and falls back to this when that call errors; with no Graph client
// configured it sends through this directly.
type SMTPSender struct {
	addr     string
	username string
	password string
	from     string
}

// NewSMTPSender builds an SMTPSender against a host:port relay.
func NewSMTPSender(addr, username, password, from string) *SMTPSender {
	return &SMTPSender{addr: addr, username: username, password: password, from: from}
}

// Send composes and delivers a single plain-text message.
func (s *SMTPSender) Send(to, subject, body string) error {
	var buf strings.Builder
	h := mail.Header{}
	h.SetDate(time.Now())
	if err := h.SetAddressList("From", []*mail.Address{{Address: s.from}}); err != nil {
		return fmt.Errorf("mail: smtp from header: %w", err)
	}
	if err := h.SetAddressList("To", []*mail.Address{{Address: to}}); err != nil {
		return fmt.Errorf("mail: smtp to header: %w", err)
	}
	h.SetSubject(subject)

	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return fmt.Errorf("mail: smtp writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("mail: smtp body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: smtp close: %w", err)
	}

	auth := sasl.NewPlainClient("", s.username, s.password)
	if err := smtp.SendMail(s.addr, auth, s.from, []string{to}, strings.NewReader(buf.String())); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}
