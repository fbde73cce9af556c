// Package server exposes the timetable, the next-bus board, the widget
// timeline and departure reminders over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/rycus86/localbus/pkg/notify"
	"github.com/rycus86/localbus/pkg/schedule"
	"github.com/rycus86/localbus/pkg/timetables"
	"github.com/rycus86/localbus/pkg/widget"
)

// Timetables is the part of timetables.Service the handlers need.
type Timetables interface {
	Current() *timetables.Snapshot
	Refresh(ctx context.Context) (*timetables.Snapshot, error)
}

type Server struct {
	ctx         context.Context
	timetables  Timetables
	reminders   *notify.Reminders
	leadMinutes int
	now         func() time.Time
}

type Option func(*Server)

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithReminders enables the reminder endpoints. leadMinutes applies when a
// request has no lead parameter.
func WithReminders(reminders *notify.Reminders, leadMinutes int) Option {
	return func(s *Server) {
		s.reminders = reminders
		s.leadMinutes = leadMinutes
	}
}

// New creates the server. Reminders booked through it are delivered with
// ctx, so they are dropped once ctx is done.
func New(ctx context.Context, tt Timetables, options ...Option) *Server {
	s := &Server{
		ctx:         ctx,
		timetables:  tt,
		leadMinutes: notify.DefaultLeadMinutes,
		now:         time.Now,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

func (s *Server) Routes() http.Handler {
	router := httprouter.New()

	router.Handler(http.MethodGet, "/next/:direction", observed("next", NextBus(s.timetables.Current, s.now)))
	router.Handler(http.MethodGet, "/timetable", observed("timetable", http.HandlerFunc(s.timetable)))
	router.Handler(http.MethodGet, "/timetable/:direction", observed("timetable", http.HandlerFunc(s.directionTimetable)))
	router.Handler(http.MethodGet, "/widget/:direction", observed("widget", http.HandlerFunc(s.widgetTimeline)))
	router.Handler(http.MethodPost, "/refresh", observed("refresh", http.HandlerFunc(s.refresh)))

	if s.reminders != nil {
		router.Handler(http.MethodPost, "/reminders/:direction/:time", observed("reminders", http.HandlerFunc(s.scheduleReminder)))
		router.Handler(http.MethodDelete, "/reminders/:time", observed("reminders", http.HandlerFunc(s.cancelReminder)))
		router.Handler(http.MethodDelete, "/reminders", observed("reminders", http.HandlerFunc(s.cancelAllReminders)))
	}

	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	router.HandlerFunc(http.MethodGet, "/healthz", s.healthz)

	return router
}

func (s *Server) timetable(writer http.ResponseWriter, request *http.Request) {
	snapshot := s.timetables.Current()
	if snapshot == nil {
		writeUnavailable(writer)
		return
	}

	writeJSON(writer, http.StatusOK, snapshot)
}

type directionTimetableResponse struct {
	Direction    timetables.Direction `json:"direction"`
	Label        string               `json:"label"`
	ScheduleType schedule.Type        `json:"schedule_type"`
	Weekday      []string             `json:"weekday"`
	Weekend      []string             `json:"weekend"`
	Stops        []timetables.BusStop `json:"stops"`
}

func (s *Server) directionTimetable(writer http.ResponseWriter, request *http.Request) {
	direction, ok := directionParam(writer, request)
	if !ok {
		return
	}

	snapshot := s.timetables.Current()
	if snapshot == nil {
		writeUnavailable(writer)
		return
	}

	document := snapshot.Document

	writeJSON(writer, http.StatusOK, directionTimetableResponse{
		Direction:    direction,
		Label:        direction.Label(),
		ScheduleType: document.ScheduleTypeFor(s.now()),
		Weekday:      document.Times(direction, schedule.Weekday),
		Weekend:      document.Times(direction, schedule.Weekend),
		Stops:        document.Stops(direction),
	})
}

// widgetTimeline answers even without a snapshot; the timeline then falls
// back to the default departure times.
func (s *Server) widgetTimeline(writer http.ResponseWriter, request *http.Request) {
	direction, ok := directionParam(writer, request)
	if !ok {
		return
	}

	var document *timetables.Document
	if snapshot := s.timetables.Current(); snapshot != nil {
		document = snapshot.Document
	}

	writeJSON(writer, http.StatusOK, widget.Build(document, direction, s.now()))
}

type refreshResponse struct {
	Source    timetables.Source `json:"source"`
	Version   int               `json:"version"`
	UpdatedAt string            `json:"updated_at"`
	LoadedAt  time.Time         `json:"loaded_at"`
}

func (s *Server) refresh(writer http.ResponseWriter, request *http.Request) {
	snapshot, err := s.timetables.Refresh(request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to refresh the timetable")

		if errors.Is(err, timetables.ErrNoDataAvailable) {
			http.Error(writer, err.Error(), http.StatusServiceUnavailable)
		} else {
			http.Error(writer, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(writer, http.StatusOK, refreshResponse{
		Source:    snapshot.Source,
		Version:   snapshot.Document.Meta.Version,
		UpdatedAt: snapshot.Document.Meta.UpdatedAt,
		LoadedAt:  snapshot.LoadedAt,
	})
}

func (s *Server) scheduleReminder(writer http.ResponseWriter, request *http.Request) {
	direction, ok := directionParam(writer, request)
	if !ok {
		return
	}

	busTime := httprouter.ParamsFromContext(request.Context()).ByName("time")

	lead, ok := s.leadParam(writer, request)
	if !ok {
		return
	}

	reminder, err := s.reminders.Schedule(s.ctx, busTime, lead, direction.Label(), s.now())
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(writer, http.StatusCreated, reminder)
}

func (s *Server) cancelReminder(writer http.ResponseWriter, request *http.Request) {
	busTime := httprouter.ParamsFromContext(request.Context()).ByName("time")
	if _, err := schedule.ParseClock(busTime); err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}

	lead, ok := s.leadParam(writer, request)
	if !ok {
		return
	}

	s.reminders.Cancel(busTime, lead)
	writer.WriteHeader(http.StatusNoContent)
}

func (s *Server) cancelAllReminders(writer http.ResponseWriter, _ *http.Request) {
	s.reminders.CancelAll()
	writer.WriteHeader(http.StatusNoContent)
}

func (s *Server) leadParam(writer http.ResponseWriter, request *http.Request) (int, bool) {
	value := request.URL.Query().Get("lead")
	if value == "" {
		return s.leadMinutes, true
	}

	lead, err := strconv.Atoi(value)
	if err != nil || lead < 0 {
		http.Error(writer, "invalid lead: "+value, http.StatusBadRequest)
		return 0, false
	}

	return lead, true
}

func (s *Server) healthz(writer http.ResponseWriter, _ *http.Request) {
	if s.timetables.Current() == nil {
		writeUnavailable(writer)
		return
	}

	writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	writer.Write([]byte("ok\n"))
}
