package senders

import (
	"context"
	"fmt"
	"time"

	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/mailgun/mailgun-go/v4"
)

type mailgunSender struct {
	base
}

func (e *mailgunSender) SendEvent(ctx context.Context, recipient string, state *models.ClassState, event models.NotificationEvent) (string, error) {
	mg := mailgun.NewMailgun(e.cfg.Mailgun.Domain, e.cfg.Mailgun.APIKey)
	mg.Client().Transport = e.transport

	format := &eventEmailFormat{state, event}

	// Create message with empty body first, then SetHtml so the MIME type is
	// assigned properly.
	message := mg.NewMessage(e.cfg.Mailgun.Sender, format.Subject(), "", recipient)
	message.SetHtml(format.Body())

	timeout := time.Duration(e.cfg.Mailgun.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, id, err := mg.Send(ctx, message)
	return id, err
}

type eventEmailFormat struct {
	state *models.ClassState
	event models.NotificationEvent
}

func (ef *eventEmailFormat) Subject() string {
	return fmt.Sprintf("UCLA Class Tracker: %s %s is now %s",
		ef.state.Subject, ef.state.CatalogNumber, ef.event.NewStatus)
}

func (ef *eventEmailFormat) Body() string {
	body := fmt.Sprintf(
		`
			<h3>%s %s (%s)</h3>
			<p>%s</p>
		`,
		ef.state.Subject, ef.state.CatalogNumber, ef.state.Term,
		ef.event.Description,
	)
	if ef.event.Capacity > 0 {
		body += fmt.Sprintf("<p>Enrollment: %d/%d</p>", ef.event.Enrolled, ef.event.Capacity)
	}
	if ef.event.WaitlistCapacity > 0 {
		body += fmt.Sprintf("<p>Waitlist: %d/%d</p>", ef.event.WaitlistCount, ef.event.WaitlistCapacity)
	}
	return body
}
