package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rycus86/localbus/pkg/notify"
	"github.com/rycus86/localbus/pkg/schedule"
	"github.com/rycus86/localbus/pkg/timetables"
	"github.com/rycus86/localbus/pkg/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday
var testNow = time.Date(2026, time.January, 14, 6, 55, 30, 0, schedule.Location)

type fakeTimetables struct {
	snapshot   *timetables.Snapshot
	refreshErr error
	refreshes  int
}

func (f *fakeTimetables) Current() *timetables.Snapshot {
	return f.snapshot
}

func (f *fakeTimetables) Refresh(_ context.Context) (*timetables.Snapshot, error) {
	f.refreshes++
	if f.refreshErr != nil {
		return f.snapshot, f.refreshErr
	}

	return f.snapshot, nil
}

type memoryScheduler struct {
	mu      sync.Mutex
	pending map[string]time.Time
}

func (m *memoryScheduler) Schedule(_ context.Context, key string, at time.Time, _ notify.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[key] = at
	return nil
}

func (m *memoryScheduler) Cancel(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
}

func (m *memoryScheduler) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = map[string]time.Time{}
}

func (m *memoryScheduler) Pending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[key]
	return ok
}

func testSnapshot(source timetables.Source) *timetables.Snapshot {
	notice := "Route 1 detour on Saturday"

	return &timetables.Snapshot{
		Source:   source,
		LoadedAt: testNow,
		Document: &timetables.Document{
			Meta: timetables.Meta{
				Version:       3,
				UpdatedAt:     "2026-01-10",
				NoticeMessage: &notice,
			},
			Holidays: []string{"2026-01-01"},
			Routes: map[timetables.Direction]*timetables.RouteData{
				timetables.Outbound: {
					Name:            "장유 → 사상",
					DurationMinutes: 40,
					Fare:            2300,
					Stops: []timetables.BusStop{
						{ID: "jangyu", Name: "Jangyu", IsDeparture: true},
						{ID: "sasang", Name: "Sasang"},
					},
					Timetable: timetables.Timetable{
						Weekday: []string{"07:00", "07:20"},
						Weekend: []string{"09:00"},
					},
				},
			},
		},
	}
}

func newTestServer(tt Timetables) (http.Handler, *notify.Reminders) {
	reminders := notify.NewReminders(&memoryScheduler{pending: map[string]time.Time{}})

	srv := New(context.Background(), tt,
		WithClock(func() time.Time { return testNow }),
		WithReminders(reminders, 5))

	return srv.Routes(), reminders
}

func serve(handler http.Handler, method, target, accept string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, nil)
	if accept != "" {
		request.Header.Set("Accept", accept)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	return recorder
}

func TestNextBusJSON(t *testing.T) {
	handler, _ := newTestServer(&fakeTimetables{snapshot: testSnapshot(timetables.SourceCache)})

	response := serve(handler, http.MethodGet, "/next/jangyu_to_sasang", "application/json")
	require.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "application/json", response.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))

	assert.Equal(t, "07:00", body["next_bus"])
	assert.Equal(t, float64(5), body["minutes_until_next"])
	assert.Equal(t, float64(270), body["seconds_until_next"])
	assert.Equal(t, "04:30", body["countdown"])
	assert.Equal(t, "weekday", body["schedule_type"])
	assert.Equal(t, "cache", body["source"])
	assert.Equal(t, true, body["offline"])
	assert.Equal(t, "Route 1 detour on Saturday", body["notice"])
}

func TestNextBusScheduleTypeOverride(t *testing.T) {
	handler, _ := newTestServer(&fakeTimetables{snapshot: testSnapshot(timetables.SourceRemote)})

	response := serve(handler, http.MethodGet, "/next/jangyu_to_sasang?type=weekend", "application/json")
	require.Equal(t, http.StatusOK, response.Code)

	var board timetables.Board
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &board))
	assert.Equal(t, "09:00", board.NextBus)
	assert.Equal(t, []string{"09:00"}, board.Times)

	response = serve(handler, http.MethodGet, "/next/jangyu_to_sasang?type=holiday", "application/json")
	assert.Equal(t, http.StatusBadRequest, response.Code)
}

func TestNextBusHTMLAndText(t *testing.T) {
	handler, _ := newTestServer(&fakeTimetables{snapshot: testSnapshot(timetables.SourceRemote)})

	response := serve(handler, http.MethodGet, "/next/jangyu_to_sasang", "text/html")
	require.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, response.Body.String(), "<span>Next bus: 07:00 in 5 min (04:30)</span>")
	assert.Contains(t, response.Body.String(), "Fare: 2,300 KRW, 40 min")
	assert.NotContains(t, response.Body.String(), "Offline")

	response = serve(handler, http.MethodGet, "/next/jangyu_to_sasang", "")
	require.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "장유 → 사상 (weekday)\n"+
		"! Route 1 detour on Saturday\n"+
		"Next bus: 07:00 in 5 min (04:30)\n"+
		"First bus: 07:00, last bus: 07:20\n", response.Body.String())
}

func TestNextBusErrors(t *testing.T) {
	handler, _ := newTestServer(&fakeTimetables{})

	response := serve(handler, http.MethodGet, "/next/jangyu_to_sasang", "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, response.Code)
	assert.Contains(t, response.Body.String(), "no timetable data available")

	response = serve(handler, http.MethodGet, "/next/busan_to_seoul", "application/json")
	assert.Equal(t, http.StatusNotFound, response.Code)
}

func TestBoardTextServiceEnded(t *testing.T) {
	evening := time.Date(2026, time.January, 14, 23, 0, 0, 0, schedule.Location)
	board := timetables.NewBoardForToday(testSnapshot(timetables.SourceRemote).Document, timetables.Outbound, evening)

	text := BoardText(board)
	assert.Contains(t, text, "Service has ended, first bus tomorrow at 07:00 in 8 h\n")
}

func TestTimetableEndpoints(t *testing.T) {
	handler, _ := newTestServer(&fakeTimetables{snapshot: testSnapshot(timetables.SourceRemote)})

	response := serve(handler, http.MethodGet, "/timetable", "")
	require.Equal(t, http.StatusOK, response.Code)

	var snapshot timetables.Snapshot
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &snapshot))
	assert.Equal(t, 3, snapshot.Document.Meta.Version)

	response = serve(handler, http.MethodGet, "/timetable/jangyu_to_sasang", "")
	require.Equal(t, http.StatusOK, response.Code)

	var times directionTimetableResponse
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &times))
	assert.Equal(t, timetables.Outbound, times.Direction)
	assert.Equal(t, []string{"07:00", "07:20"}, times.Weekday)
	assert.Equal(t, []string{"09:00"}, times.Weekend)
	assert.Len(t, times.Stops, 2)

	response = serve(handler, http.MethodGet, "/timetable/nowhere", "")
	assert.Equal(t, http.StatusNotFound, response.Code)

	empty, _ := newTestServer(&fakeTimetables{})
	assert.Equal(t, http.StatusServiceUnavailable, serve(empty, http.MethodGet, "/timetable", "").Code)
}

func TestWidgetEndpoint(t *testing.T) {
	handler, _ := newTestServer(&fakeTimetables{})

	response := serve(handler, http.MethodGet, "/widget/jangyu_to_sasang", "")
	require.Equal(t, http.StatusOK, response.Code)

	var timeline widget.Timeline
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &timeline))
	require.Len(t, timeline.Entries, widget.EntryCount)
	assert.Equal(t, "07:00", timeline.Entries[0].NextBusTime, "default times without a document")
}

func TestRefreshEndpoint(t *testing.T) {
	tt := &fakeTimetables{snapshot: testSnapshot(timetables.SourceRemote)}
	handler, _ := newTestServer(tt)

	response := serve(handler, http.MethodPost, "/refresh", "")
	require.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, 1, tt.refreshes)

	var body refreshResponse
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	assert.Equal(t, timetables.SourceRemote, body.Source)
	assert.Equal(t, "2026-01-10", body.UpdatedAt)

	tt.refreshErr = fmt.Errorf("loading: %w", timetables.ErrNoDataAvailable)
	assert.Equal(t, http.StatusServiceUnavailable, serve(handler, http.MethodPost, "/refresh", "").Code)

	tt.refreshErr = errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, serve(handler, http.MethodPost, "/refresh", "").Code)
}

func TestReminderEndpoints(t *testing.T) {
	handler, reminders := newTestServer(&fakeTimetables{snapshot: testSnapshot(timetables.SourceRemote)})

	response := serve(handler, http.MethodPost, "/reminders/jangyu_to_sasang/07:20?lead=10", "")
	require.Equal(t, http.StatusCreated, response.Code)

	var reminder notify.Reminder
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &reminder))
	assert.Equal(t, "bus_07:20_10", reminder.Key)
	assert.True(t, reminder.FireAt.Equal(time.Date(2026, time.January, 14, 7, 10, 0, 0, schedule.Location)))
	assert.True(t, reminders.IsScheduled("07:20", 10))

	response = serve(handler, http.MethodPost, "/reminders/jangyu_to_sasang/07:20", "")
	require.Equal(t, http.StatusCreated, response.Code)
	assert.True(t, reminders.IsScheduled("07:20", 5), "default lead time")

	response = serve(handler, http.MethodDelete, "/reminders/07:20?lead=10", "")
	assert.Equal(t, http.StatusNoContent, response.Code)
	assert.False(t, reminders.IsScheduled("07:20", 10))
	assert.True(t, reminders.IsScheduled("07:20", 5))

	response = serve(handler, http.MethodDelete, "/reminders", "")
	assert.Equal(t, http.StatusNoContent, response.Code)
	assert.False(t, reminders.IsScheduled("07:20", 5))
}

func TestReminderEndpointsRejectBadInput(t *testing.T) {
	handler, _ := newTestServer(&fakeTimetables{snapshot: testSnapshot(timetables.SourceRemote)})

	assert.Equal(t, http.StatusBadRequest, serve(handler, http.MethodPost, "/reminders/jangyu_to_sasang/7pm", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(handler, http.MethodPost, "/reminders/jangyu_to_sasang/07:20?lead=-3", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(handler, http.MethodPost, "/reminders/jangyu_to_sasang/07:20?lead=soon", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(handler, http.MethodPost, "/reminders/nowhere/07:20", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(handler, http.MethodDelete, "/reminders/25:00", "").Code)
}

func TestRemindersDisabled(t *testing.T) {
	handler := New(context.Background(), &fakeTimetables{}).Routes()

	response := serve(handler, http.MethodDelete, "/reminders", "")
	assert.NotEqual(t, http.StatusNoContent, response.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	handler, _ := newTestServer(&fakeTimetables{snapshot: testSnapshot(timetables.SourceRemote)})

	response := serve(handler, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "ok\n", response.Body.String())

	serve(handler, http.MethodGet, "/next/jangyu_to_sasang", "")

	response = serve(handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, response.Code)
	assert.True(t, strings.Contains(response.Body.String(), "localbus_request_duration_seconds"))

	empty, _ := newTestServer(&fakeTimetables{})
	assert.Equal(t, http.StatusServiceUnavailable, serve(empty, http.MethodGet, "/healthz", "").Code)
}
