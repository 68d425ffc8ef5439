package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	mail "gopkg.in/mail.v2"

	"github.com/poro/notify-engine/internal/entity"
)

// EmailAdapter sends over SMTP via gomail.
type EmailAdapter struct {
	dialer  *mail.Dialer
	from    string
	timeout time.Duration
}

func NewEmailAdapter(host string, port int, username, password, from string, timeout time.Duration) *EmailAdapter {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = timeout

	return &EmailAdapter{
		dialer:  dialer,
		from:    from,
		timeout: timeout,
	}
}

func (a *EmailAdapter) Channel() entity.Channel {
	return entity.ChannelEmail
}

func (a *EmailAdapter) Send(ctx context.Context, msg Message) DeliveryResult {
	if msg.To == "" || !strings.Contains(msg.To, "@") {
		return failure(fmt.Errorf("invalid email address %q", msg.To), true)
	}

	message := mail.NewMessage()
	message.SetHeader("From", a.from)
	message.SetHeader("To", msg.To)
	message.SetHeader("Subject", msg.Subject)

	if msg.HTML != "" {
		message.SetBody("text/html", msg.HTML)
		if msg.Text != "" {
			message.AddAlternative("text/plain", msg.Text)
		}
	} else {
		message.SetBody("text/plain", msg.Text)
	}

	done := make(chan error, 1)
	go func() {
		done <- a.dialer.DialAndSend(message)
	}()

	select {
	case <-ctx.Done():
		return failure(fmt.Errorf("email send timed out: %w", ctx.Err()), false)
	case err := <-done:
		if err != nil {
			return failure(fmt.Errorf("send email: %w", err), isPermanentSMTPError(err))
		}
	}

	return DeliveryResult{Success: true}
}

// isPermanentSMTPError classifies 5xx SMTP rejections (bad mailbox, policy
// rejection) as permanent; connection and 4xx errors stay transient.
func isPermanentSMTPError(err error) bool {
	msg := err.Error()
	for _, code := range []string{"550", "551", "553", "554"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
