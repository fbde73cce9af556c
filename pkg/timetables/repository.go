package timetables

import (
	"context"
	"errors"
	"io/fs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/rycus86/localbus/pkg/cache"
	"github.com/rycus86/localbus/pkg/client"
)

const DefaultRemoteURL = "https://raw.githubusercontent.com/JongMini/LocalBus-Data/main/timetable.json"

// ErrNoDataAvailable means the remote source, the cache and the bundled
// document all failed.
var ErrNoDataAvailable = errors.New("no timetable data available")

var (
	loadCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "localbus_timetable_loads_total",
		Help: "Number of timetable documents loaded, by source",
	}, []string{"source"})
	fallbackCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "localbus_timetable_fallbacks_total",
		Help: "Number of times a loading tier failed and the next one was tried",
	}, []string{"tier"})
)

func init() {
	prometheus.MustRegister(loadCount, fallbackCount)
}

type Repository struct {
	client    client.Client
	remoteURL string

	cache    cache.Store
	cacheKey string

	bundle     fs.FS
	bundleName string
}

type Option func(*Repository)

func WithCacheKey(key string) Option {
	return func(r *Repository) { r.cacheKey = key }
}

// WithBundle replaces the embedded default document.
func WithBundle(bundle fs.FS, name string) Option {
	return func(r *Repository) {
		r.bundle = bundle
		r.bundleName = name
	}
}

func NewRepository(cli client.Client, remoteURL string, store cache.Store, options ...Option) *Repository {
	repository := &Repository{
		client:     cli,
		remoteURL:  remoteURL,
		cache:      store,
		cacheKey:   cache.DefaultKey,
		bundle:     defaultBundle,
		bundleName: DefaultBundleName,
	}

	for _, option := range options {
		option(repository)
	}

	return repository
}

// LoadActiveTimetable tries the remote source, then the cache, then the
// bundled document. Only a remote document is written to the cache. A done
// ctx stops the chain instead of falling through to the next tier.
func (r *Repository) LoadActiveTimetable(ctx context.Context) (*Document, Source, error) {
	if document, err := r.FetchRemote(ctx); err == nil {
		if err := r.SaveToCache(ctx, document); err != nil {
			log.Error().Err(err).Str("key", r.cacheKey).Msg("Failed to save timetable to cache")
		}

		loadCount.With(prometheus.Labels{"source": SourceRemote.String()}).Inc()
		return document, SourceRemote, nil
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, SourceRemote, ctxErr
	} else {
		fallbackCount.With(prometheus.Labels{"tier": SourceRemote.String()}).Inc()
		log.Warn().Err(err).Str("url", r.remoteURL).Msg("Remote timetable unavailable, trying cache")
	}

	if document, err := r.LoadCached(ctx); err == nil {
		loadCount.With(prometheus.Labels{"source": SourceCache.String()}).Inc()
		return document, SourceCache, nil
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, SourceCache, ctxErr
	} else {
		fallbackCount.With(prometheus.Labels{"tier": SourceCache.String()}).Inc()
		log.Warn().Err(err).Str("key", r.cacheKey).Msg("Cached timetable unavailable, trying bundled default")
	}

	if document, err := r.LoadBundled(); err == nil {
		loadCount.With(prometheus.Labels{"source": SourceBundle.String()}).Inc()
		return document, SourceBundle, nil
	} else {
		fallbackCount.With(prometheus.Labels{"tier": SourceBundle.String()}).Inc()
		log.Error().Err(err).Str("name", r.bundleName).Msg("Bundled timetable unavailable")
	}

	return nil, SourceBundle, ErrNoDataAvailable
}

func (r *Repository) FetchRemote(ctx context.Context) (*Document, error) {
	if r.client == nil || r.remoteURL == "" {
		return nil, client.ErrNetworkUnavailable
	}

	body, err := r.client.FetchJSON(ctx, r.remoteURL)
	if err != nil {
		return nil, err
	}

	return Decode(body)
}

func (r *Repository) LoadCached(ctx context.Context) (*Document, error) {
	if r.cache == nil {
		return nil, cache.ErrNotFound
	}

	contents, err := r.cache.Load(ctx, r.cacheKey)
	if err != nil {
		return nil, err
	}

	return Decode(contents)
}

func (r *Repository) SaveToCache(ctx context.Context, document *Document) error {
	if r.cache == nil {
		return nil
	}

	encoded, err := Encode(document)
	if err != nil {
		return err
	}

	return r.cache.Save(ctx, r.cacheKey, encoded)
}

func (r *Repository) LoadBundled() (*Document, error) {
	if r.bundle == nil {
		return nil, fs.ErrNotExist
	}

	contents, err := fs.ReadFile(r.bundle, r.bundleName)
	if err != nil {
		return nil, err
	}

	return Decode(contents)
}
