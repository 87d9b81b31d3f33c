// Package notify e-mails a digest of notable sightings.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"rarebird/lib/observation"
	"rarebird/lib/telemetry"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("rarebird.lib.notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Digest struct {
	Smtp SmtpConfig
	To   []string

	// replaced in tests
	send func(mail *email.Email, addr string, auth smtp.Auth) error
}

func sendMail(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

// Render builds the subject and plain text body of a digest.
func Render(region string, obs []observation.Observation) (subject, body string) {
	noun := "sightings"
	if len(obs) == 1 {
		noun = "sighting"
	}
	subject = fmt.Sprintf("%d notable %s in %s", len(obs), noun, region)

	var b strings.Builder
	fmt.Fprintf(&b, "Notable observations reported in %s:\n\n", region)
	for _, o := range obs {
		name := o.CommonName
		if name == "" {
			name = o.SpeciesCode
		}
		if name == "" {
			name = "Unidentified"
		}
		b.WriteString("- ")
		b.WriteString(name)
		if n, ok := o.Count.Value(); ok {
			fmt.Fprintf(&b, " (%d)", n)
		}
		if o.LocationName != "" {
			b.WriteString(" at ")
			b.WriteString(o.LocationName)
		}
		if o.ObservedAt != "" {
			b.WriteString(", ")
			b.WriteString(o.ObservedAt)
		}
		if o.ObserverName != "" {
			b.WriteString(" by ")
			b.WriteString(o.ObserverName)
		}
		if !o.Reviewed {
			b.WriteString(" [unreviewed]")
		}
		b.WriteByte('\n')
	}
	return subject, b.String()
}

// Send mails the digest. Nothing is sent for an empty batch.
func (d Digest) Send(ctx context.Context, region string, obs []observation.Observation) error {
	ctx, span := tracer.Start(ctx, "Send")
	defer span.End()

	if len(obs) == 0 {
		slog.InfoContext(ctx, "no notable observations, digest not sent")
		return nil
	}
	if len(d.To) == 0 {
		return fmt.Errorf("digest has no recipients")
	}

	subject, body := Render(region, obs)

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Rare Bird Alerts <%s>", d.Smtp.EmailAddress)
	mail.To = d.To
	mail.Subject = subject
	mail.Text = []byte(body)

	send := d.send
	if send == nil {
		send = sendMail
	}
	addr := fmt.Sprintf("%s:%d", d.Smtp.Server, d.Smtp.Port)

	err := send(mail, addr, smtp.PlainAuth("", d.Smtp.EmailAddress, d.Smtp.Password, d.Smtp.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = send(mail, addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}

	slog.InfoContext(ctx, "digest sent", "recipients", len(d.To), "observations", len(obs))
	return nil
}
