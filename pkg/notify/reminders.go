package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rycus86/localbus/pkg/schedule"
)

const DefaultLeadMinutes = 5

// Key identifies the reminder for one departure and lead time.
func Key(busTime string, leadMinutes int) string {
	return fmt.Sprintf("bus_%s_%d", busTime, leadMinutes)
}

// Reminders books departure reminders on a Scheduler.
type Reminders struct {
	scheduler Scheduler
}

func NewReminders(scheduler Scheduler) *Reminders {
	return &Reminders{scheduler: scheduler}
}

// Schedule registers a reminder leadMinutes before the next occurrence of
// busTime, as seen from now.
func (r *Reminders) Schedule(ctx context.Context, busTime string, leadMinutes int, direction string, now time.Time) (Reminder, error) {
	if leadMinutes < 0 {
		return Reminder{}, fmt.Errorf("lead time must not be negative: %d", leadMinutes)
	}

	fireAt, err := schedule.ReminderTime(busTime, leadMinutes, now)
	if err != nil {
		return Reminder{}, err
	}

	reminder := Reminder{
		Key:         Key(busTime, leadMinutes),
		Title:       "Bus departure reminder",
		Body:        fmt.Sprintf("%s %s bus departs in %d min", direction, busTime, leadMinutes),
		BusTime:     busTime,
		LeadMinutes: leadMinutes,
		Direction:   direction,
		FireAt:      fireAt,
	}

	if err := r.scheduler.Schedule(ctx, reminder.Key, fireAt, reminder); err != nil {
		return Reminder{}, err
	}

	return reminder, nil
}

func (r *Reminders) Cancel(busTime string, leadMinutes int) {
	r.scheduler.Cancel(Key(busTime, leadMinutes))
}

func (r *Reminders) CancelAll() {
	r.scheduler.CancelAll()
}

func (r *Reminders) IsScheduled(busTime string, leadMinutes int) bool {
	return r.scheduler.Pending(Key(busTime, leadMinutes))
}

// Toggle cancels a pending reminder or schedules a new one. It reports
// whether a reminder is pending afterwards.
func (r *Reminders) Toggle(ctx context.Context, busTime string, leadMinutes int, direction string, now time.Time) (bool, error) {
	if r.IsScheduled(busTime, leadMinutes) {
		r.Cancel(busTime, leadMinutes)
		return false, nil
	}

	if _, err := r.Schedule(ctx, busTime, leadMinutes, direction, now); err != nil {
		return false, err
	}

	return true, nil
}
