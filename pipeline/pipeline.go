// Package pipeline wires the resilient request path together: tiered cache
// in front, prioritized single-flight queue in the middle, retrying API
// client at the back, recovery engine beside it. Every component is
// explicitly constructed and injected; nothing here is a process-wide
// singleton, so tests and multi-tenant hosts can run isolated instances.
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/voicetra/pipeline/api_client"
	"github.com/voicetra/pipeline/cache"
	"github.com/voicetra/pipeline/cache/backends/fs"
	"github.com/voicetra/pipeline/config"
	"github.com/voicetra/pipeline/credentials"
	"github.com/voicetra/pipeline/rate_limit"
	"github.com/voicetra/pipeline/recovery"
	"github.com/voicetra/pipeline/request_queue"
	"github.com/voicetra/pipeline/telemetry"
	"github.com/voicetra/pipeline/translation"
	"github.com/voicetra/pipeline/utils/backoff"
	"github.com/voicetra/pipeline/utils/logger"
)

// Translator performs the backend call. Satisfied by *api_client.Client;
// tests substitute fakes.
type Translator interface {
	Translate(ctx context.Context, req translation.Request) (*translation.Response, error)
}

// Options carries the injectable collaborators. Nil fields get defaults:
// noop logger, noop telemetry, env credential store, filesystem blob store
// under the configured cache dir.
type Options struct {
	Logger      logger.Logger
	Sink        telemetry.Sink
	Credentials credentials.Store
	BlobStore   cache.BlobStore
	Translator  Translator // overrides the built-in API client
}

// Pipeline is the assembled request path.
type Pipeline struct {
	cfg      config.Config
	logger   logger.Logger
	limiter  *rate_limit.Limiter
	cache    *cache.TieredCache
	queue    *request_queue.Queue
	client   Translator
	recovery *recovery.Engine
}

// New assembles a pipeline from configuration and options and starts its
// dispatch loop.
func New(cfg config.Config, opts Options) (*Pipeline, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}
	sink := opts.Sink
	if sink == nil {
		sink = telemetry.NewNoopSink()
	}
	creds := opts.Credentials
	if creds == nil {
		creds = credentials.NewEnvStore()
	}

	blobs := opts.BlobStore
	if blobs == nil {
		store, err := fs.NewStore(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		blobs = store
	}

	limiter := rate_limit.NewLimiter(rate_limit.Config{
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window(),
	}).SetLogger(log)

	tiered, err := cache.NewTieredCache(cache.Config{
		MemoryMaxItems: cfg.Cache.MemoryMaxItems,
		MemoryMaxBytes: cfg.Cache.MemoryMaxBytes,
		DiskMaxBytes:   cfg.Cache.DiskMaxBytes,
	}, blobs)
	if err != nil {
		return nil, err
	}
	tiered.SetLogger(log)

	client := opts.Translator
	if client == nil {
		client = api_client.NewClient(api_client.Config{
			BaseURL:          cfg.API.BaseURL,
			ServiceID:        cfg.API.ServiceID,
			MaxRetryAttempts: cfg.API.MaxRetryAttempts,
			RequestTimeout:   cfg.API.Timeout(),
			Backoff: backoff.Config{
				MaxRetries: cfg.Backoff.MaxRetries,
				BaseDelay:  cfg.Backoff.BaseDelay(),
				MaxDelay:   cfg.Backoff.MaxDelay(),
			},
		}, limiter).
			SetCredentials(creds).
			SetSink(sink).
			SetLogger(log)
	}

	engine := recovery.NewEngine()
	if cfg.Log.AuditLog != "" {
		if err := engine.SetAuditFile(cfg.Log.AuditLog); err != nil {
			// Best effort: classification still works without the file log.
			log.Printf("pipeline: audit log disabled: %v", err)
		}
	}

	queue := request_queue.NewQueue(
		request_queue.Config{Capacity: cfg.Queue.Capacity},
		limiter,
		client.Translate,
	).SetLogger(log)
	queue.Start()

	return &Pipeline{
		cfg:      cfg,
		logger:   log,
		limiter:  limiter,
		cache:    tiered,
		queue:    queue,
		client:   client,
		recovery: engine,
	}, nil
}

// Translate resolves one request: cache first, then the queue and the
// backend. Successful results are written through to the cache before being
// returned. Cancelling ctx abandons the wait and classifies as Cancelled.
func (p *Pipeline) Translate(ctx context.Context, req translation.Request, priority request_queue.Priority) (*translation.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.Fingerprint()
	if data, ok := p.cache.Get(key); ok {
		var resp translation.Response
		if err := json.Unmarshal(data, &resp); err == nil {
			return &resp, nil
		}
		// Corrupt cache entry: fall through to the network path.
		p.logger.Printf("pipeline: discarding corrupt cache entry %s", key)
	}

	type outcome struct {
		resp *translation.Response
		err  error
	}
	resultChan := make(chan outcome, 1)

	_, err := p.queue.Enqueue(ctx, req, priority, func(resp *translation.Response, err error) {
		resultChan <- outcome{resp: resp, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, translation.NewCancelled(ctx.Err())
	case result := <-resultChan:
		if result.err != nil {
			return nil, result.err
		}
		if data, err := json.Marshal(result.resp); err == nil {
			_ = p.cache.Put(key, data) // cache errors are non-fatal and logged inside
		}
		return result.resp, nil
	}
}

// Recover maps a failure from Translate (or an upstream collaborator) to
// its recovery strategy.
func (p *Pipeline) Recover(err error) recovery.Strategy {
	return p.recovery.Classify(err)
}

// Events exposes the queue's observer channel.
func (p *Pipeline) Events() <-chan *request_queue.Event {
	return p.queue.Events()
}

// Cache exposes the cache for host-driven maintenance (clear on logout,
// stats screens).
func (p *Pipeline) Cache() *cache.TieredCache {
	return p.cache
}

// AuditRecords returns the recovery engine's retained classifications.
func (p *Pipeline) AuditRecords() []recovery.Record {
	return p.recovery.Records()
}

// Close stops the queue and the recovery audit worker.
func (p *Pipeline) Close() {
	p.queue.Stop()
	p.recovery.Close()
}
