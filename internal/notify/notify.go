// Package notify publishes booking events to staff channels.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"

	"neurocare-api/internal/model"
)

type Kind string

const (
	KindBooked    Kind = "booked"
	KindCancelled Kind = "cancelled"
)

type Event struct {
	Kind        Kind
	Appointment model.Appointment
	Actor       model.Principal
}

func (e Event) Text(loc *time.Location) string {
	at := e.Appointment.AppointmentTime.In(loc).Format("Mon 02 Jan 2006 15:04")
	switch e.Kind {
	case KindBooked:
		return fmt.Sprintf("Appointment #%d booked for %s by %s", e.Appointment.ID, at, e.Actor.Name)
	case KindCancelled:
		return fmt.Sprintf("Appointment #%d on %s cancelled by %s (%s)", e.Appointment.ID, at, e.Actor.Name, e.Actor.Role)
	}
	return fmt.Sprintf("Appointment #%d: %s", e.Appointment.ID, e.Kind)
}

// Notifier delivery is best effort; callers log the error and move on.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Telegram posts each event as a plain message into one chat.
type Telegram struct {
	b      *bot.Bot
	chatID int64
	loc    *time.Location
}

func NewTelegram(token string, chatID int64, loc *time.Location, opts ...bot.Option) (*Telegram, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{b: b, chatID: chatID, loc: loc}, nil
}

func (t *Telegram) Notify(ctx context.Context, ev Event) error {
	_, err := t.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   ev.Text(t.loc),
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
