package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rycus86/localbus/pkg/cache"
	"github.com/rycus86/localbus/pkg/config"
	"github.com/rycus86/localbus/pkg/notify"
	"github.com/rycus86/localbus/pkg/schedule"
	"github.com/rycus86/localbus/pkg/timetables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	store, closeStore, err := newStore(context.Background(), config.CacheConfig{Backend: "memory"})
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &cache.MemoryStore{}, store)

	store, closeStore, err = newStore(context.Background(), config.CacheConfig{Backend: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &cache.FileStore{}, store)
}

func TestBoardFor(t *testing.T) {
	document := &timetables.Document{
		Meta:     timetables.Meta{UpdatedAt: "2026-01-10"},
		Holidays: []string{},
		Timetable: &timetables.Timetable{
			Weekday: []string{"07:00"},
			Weekend: []string{"09:00"},
		},
	}
	// Wednesday
	now := time.Date(2026, time.January, 14, 6, 0, 0, 0, schedule.Location)

	board, err := boardFor(document, timetables.Outbound, "", now)
	require.NoError(t, err)
	assert.Equal(t, "07:00", board.NextBus)

	board, err = boardFor(document, timetables.Outbound, "weekend", now)
	require.NoError(t, err)
	assert.Equal(t, "09:00", board.NextBus)

	_, err = boardFor(document, timetables.Outbound, "holiday", now)
	assert.Error(t, err)
}

func TestPrintSource(t *testing.T) {
	snapshot := &timetables.Snapshot{
		Document: &timetables.Document{Meta: timetables.Meta{UpdatedAt: "2026-01-10"}},
		Source:   timetables.SourceBundle,
	}

	var out bytes.Buffer
	printSource(&out, snapshot)
	assert.Equal(t, "Offline: showing the bundle timetable (updated 2026-01-10)\n", out.String())

	out.Reset()
	snapshot.Source = timetables.SourceRemote
	printSource(&out, snapshot)
	assert.Empty(t, out.String())
}

func TestSignallingSink(t *testing.T) {
	done := make(chan struct{})
	sink := signallingSink{Sink: notify.LogSink{}, done: done}

	require.NoError(t, sink.Deliver(context.Background(), notify.Reminder{Key: "bus_07:00_5"}))

	select {
	case <-done:
	default:
		t.Fatal("delivery was not signalled")
	}
}

type countingLoader struct {
	loads int
}

func (l *countingLoader) LoadActiveTimetable(context.Context) (*timetables.Document, timetables.Source, error) {
	l.loads++
	return &timetables.Document{Meta: timetables.Meta{UpdatedAt: "2026-01-10"}}, timetables.SourceRemote, nil
}

func TestRunUpdatesLoadsOnceWithoutInterval(t *testing.T) {
	loader := &countingLoader{}
	service := timetables.NewService(loader)

	runUpdates(context.Background(), service, 0)

	assert.Equal(t, 1, loader.loads)
	require.NotNil(t, service.Current())
}
