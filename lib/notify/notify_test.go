package notify

import (
	"context"
	"errors"
	"net/smtp"
	"rarebird/lib/observation"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

func owl() observation.Observation {
	o := observation.Default()
	o.CommonName = "Snowy Owl"
	o.Count = observation.KnownCount(2)
	o.LocationName = "Jones Beach SP"
	o.ObservedAt = "2024-01-05 08:00"
	o.ObserverName = "A Birder"
	o.Reviewed = true
	return o
}

func TestRender(t *testing.T) {
	gull := observation.Default()
	gull.SpeciesCode = "ivogul"

	subject, body := Render("US-NY", []observation.Observation{owl(), gull})
	require.Equal(t, "2 notable sightings in US-NY", subject)
	require.Equal(t, `Notable observations reported in US-NY:

- Snowy Owl (2) at Jones Beach SP, 2024-01-05 08:00 by A Birder
- ivogul [unreviewed]
`, body)

	subject, _ = Render("US-NY", []observation.Observation{owl()})
	require.Equal(t, "1 notable sighting in US-NY", subject)
}

type capture struct {
	mails []*email.Email
	addrs []string
	auths []smtp.Auth
}

func (c *capture) send(mail *email.Email, addr string, auth smtp.Auth) error {
	c.mails = append(c.mails, mail)
	c.addrs = append(c.addrs, addr)
	c.auths = append(c.auths, auth)
	if auth != nil {
		return errors.New("smtp: server doesn't support AUTH")
	}
	return nil
}

func TestSend(t *testing.T) {
	c := &capture{}
	d := Digest{
		Smtp: SmtpConfig{Server: "smtp.example.com", Port: 587, EmailAddress: "alerts@example.com"},
		To:   []string{"birder@example.com"},
		send: c.send,
	}

	require.NoError(t, d.Send(context.Background(), "US-NY", []observation.Observation{owl()}))

	// retried without auth
	require.Len(t, c.mails, 2)
	require.Nil(t, c.auths[1])
	require.Equal(t, "smtp.example.com:587", c.addrs[1])

	mail := c.mails[1]
	require.Equal(t, "Rare Bird Alerts <alerts@example.com>", mail.From)
	require.Equal(t, []string{"birder@example.com"}, mail.To)
	require.Equal(t, "1 notable sighting in US-NY", mail.Subject)
	require.Contains(t, string(mail.Text), "Snowy Owl (2)")
}

func TestSendNothing(t *testing.T) {
	c := &capture{}
	d := Digest{To: []string{"birder@example.com"}, send: c.send}
	require.NoError(t, d.Send(context.Background(), "US-NY", nil))
	require.Empty(t, c.mails)

	d.To = nil
	require.Error(t, d.Send(context.Background(), "US-NY", []observation.Observation{owl()}))
}
