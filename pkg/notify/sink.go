package notify

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type LogSink struct{}

func (LogSink) Deliver(_ context.Context, reminder Reminder) error {
	log.Info().
		Str("key", reminder.Key).
		Str("title", reminder.Title).
		Str("direction", reminder.Direction).
		Msg(reminder.Body)

	return nil
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes reminders as JSON for a push gateway to pick up.
type NATSSink struct {
	conn    publisher
	subject string
}

func NewNATSSink(conn publisher, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("localbus"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			log.Info().Str("url", conn.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	)
}

func (s *NATSSink) Deliver(_ context.Context, reminder Reminder) error {
	payload, err := json.Marshal(reminder)
	if err != nil {
		return err
	}

	if err := s.conn.Publish(s.subject, payload); err != nil {
		return err
	}

	log.Debug().Str("subject", s.subject).Str("key", reminder.Key).Msg("Reminder published")

	return nil
}
