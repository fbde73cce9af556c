package timetables

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Snapshot is the document currently shown. A new refresh swaps the whole
// snapshot, so readers see either the old or the new one.
type Snapshot struct {
	Document *Document `json:"document"`
	Source   Source    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
}

type Loader interface {
	LoadActiveTimetable(ctx context.Context) (*Document, Source, error)
}

// DefaultRefreshTimeout bounds one run of the loading chain.
const DefaultRefreshTimeout = time.Minute

type Service struct {
	loader  Loader
	now     func() time.Time
	timeout time.Duration
	current atomic.Pointer[Snapshot]
	group   singleflight.Group
}

type ServiceOption func(*Service)

func WithRefreshTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = timeout }
}

func NewService(loader Loader, options ...ServiceOption) *Service {
	service := &Service{
		loader:  loader,
		now:     time.Now,
		timeout: DefaultRefreshTimeout,
	}

	for _, option := range options {
		option(service)
	}

	return service
}

func (s *Service) Current() *Snapshot {
	return s.current.Load()
}

// Refresh runs the whole loading chain. Calls made while one is in flight
// wait for it and share its result. The load itself is detached from ctx
// and bounded by the refresh timeout; a caller whose ctx ends stops waiting
// but does not cancel the load for the others. On failure the previous
// snapshot stays.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return s.Current(), err
	}

	results := s.group.DoChan("refresh", func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		document, source, err := s.loader.LoadActiveTimetable(loadCtx)
		if err != nil {
			return nil, err
		}

		snapshot := &Snapshot{
			Document: document,
			Source:   source,
			LoadedAt: s.now(),
		}
		s.current.Store(snapshot)

		log.Info().
			Str("source", source.String()).
			Int("version", document.Meta.Version).
			Str("updated_at", document.Meta.UpdatedAt).
			Msg("Timetable has been updated")

		return snapshot, nil
	})

	select {
	case <-ctx.Done():
		return s.Current(), ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return s.Current(), result.Err
		}

		if result.Shared {
			log.Debug().Msg("Joined an in-flight timetable refresh")
		}

		return result.Val.(*Snapshot), nil
	}
}
