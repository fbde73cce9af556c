// Package notify schedules departure reminders and hands them to a delivery
// sink when they fire.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Reminder struct {
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	BusTime     string    `json:"bus_time"`
	LeadMinutes int       `json:"lead_minutes"`
	Direction   string    `json:"direction"`
	FireAt      time.Time `json:"fire_at"`
}

// Scheduler is the platform notification centre.
type Scheduler interface {
	Schedule(ctx context.Context, key string, at time.Time, reminder Reminder) error
	Cancel(key string)
	CancelAll()
	Pending(key string) bool
}

type Sink interface {
	Deliver(ctx context.Context, reminder Reminder) error
}

// TimerScheduler keeps one timer per key in process memory.
type TimerScheduler struct {
	sink Sink
	now  func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerScheduler(sink Sink) *TimerScheduler {
	return &TimerScheduler{
		sink:   sink,
		now:    time.Now,
		timers: map[string]*time.Timer{},
	}
}

// Schedule replaces any reminder already registered under key. ctx is used
// for the delivery, so cancelling it drops reminders that have not fired.
func (s *TimerScheduler) Schedule(ctx context.Context, key string, at time.Time, reminder Reminder) error {
	if key == "" {
		return fmt.Errorf("reminder key is empty")
	}

	delay := at.Sub(s.now())
	if delay < -time.Minute {
		return fmt.Errorf("reminder %s is in the past (%s)", key, at.Format(time.RFC3339))
	} else if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[key]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.timers[key] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}

		if err := s.sink.Deliver(ctx, reminder); err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to deliver reminder")
		}
	})
	s.timers[key] = timer

	log.Debug().Str("key", key).Time("at", at).Msg("Reminder scheduled")

	return nil
}

func (s *TimerScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}
}

func (s *TimerScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}

func (s *TimerScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[key]
	return ok
}
