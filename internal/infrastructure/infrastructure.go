// Package infrastructure provides core service initialization for application startup.
// It assembles the run store, capability adapters, observers, and the workflow
// that both the HTTP server and the CLI drive.
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Montabos/Projet/internal/config"
	"github.com/Montabos/Projet/internal/outbox"
	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/checkpoint"
	"github.com/Montabos/Projet/pkg/lifecycle"
	"github.com/Montabos/Projet/pkg/llm"
	"github.com/Montabos/Projet/pkg/observability"
	"github.com/Montabos/Projet/pkg/retrieval"
	"github.com/Montabos/Projet/pkg/storage"
	"github.com/Montabos/Projet/pkg/websearch"
)

// Infrastructure holds the systems shared by the server and the CLI.
// Optional capabilities are nil when their configuration is absent.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Metrics   *prometheus.Registry
	Store     checkpoint.Store
	Storage   storage.System
	Outbox    *outbox.Outbox
	Index     *retrieval.Index
	Workflow  *workflow.Workflow

	watcher *retrieval.Watcher
	nats    *nats.Conn
}

// NewLogger builds the process logger at the configured level.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// New creates an Infrastructure from the application configuration.
// The run store is opened immediately; the corpus index, watcher, and
// blob container are prepared by Start or Prepare.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Metrics:   prometheus.NewRegistry(),
	}

	store, err := checkpoint.Open(ctx, &cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store init failed: %w", err)
	}
	infra.Store = store

	rt := &workflow.Runtime{
		Logger: logger,
		Config: cfg.Workflow,
	}

	if cfg.Agent.Enabled() {
		model := llm.NewOpenAI(&cfg.Agent)
		rt.Model = model
		rt.Decider = model.WithTemperature(cfg.Agent.DecisionTemperature)

		infra.Index = retrieval.NewIndex(model, &cfg.Corpus, logger)
		rt.Retriever = infra.Index
		if cfg.Corpus.WatchEnabled() {
			infra.watcher = retrieval.NewWatcher(infra.Index, &cfg.Corpus, logger)
		}
	} else {
		logger.Warn("OPENAI_API_KEY not set, stages run with degraded defaults")
	}

	if cfg.Search.Enabled() {
		rt.WebSearcher = websearch.NewTavily(&cfg.Search)
	} else {
		logger.Warn("TAVILY_API_KEY not set, web search disabled")
	}

	if cfg.Storage.Enabled() {
		blobs, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = blobs
		infra.Outbox = outbox.New(blobs, logger)
		rt.Archiver = infra.Outbox
	}

	wf, err := workflow.New(rt, store, infra.observer(&cfg.Observability))
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("workflow init failed: %w", err)
	}
	infra.Workflow = wf

	return infra, nil
}

func (i *Infrastructure) observer(cfg *observability.Config) observability.Observer {
	var observers []observability.Observer

	if cfg.Enabled("slog") {
		observers = append(observers, observability.NewSlogObserver(i.Logger))
	}

	if cfg.Enabled("metrics") {
		i.Metrics.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		observers = append(observers, observability.NewMetricsObserver(i.Metrics))
	}

	if cfg.Enabled("nats") {
		conn, err := observability.ConnectNATS(&cfg.NATS, i.Logger)
		if err != nil {
			i.Logger.Warn("event publishing disabled", "error", err)
		} else {
			i.nats = conn
			observers = append(observers, observability.NewNATSObserver(conn, cfg.NATS.SubjectPrefix, cfg.MinLevel(), i.Logger))
		}
	}

	return observability.NewMultiObserver(observers...)
}

// Prepare builds the corpus index once. Failures are logged and leave the
// retriever empty.
func (i *Infrastructure) Prepare(ctx context.Context) {
	if i.Index == nil {
		return
	}
	if err := i.Index.Build(ctx); err != nil {
		i.Logger.Warn("corpus index unavailable", "dir", i.Index.Dir(), "error", err)
	}
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	lc := i.Lifecycle

	if i.Storage != nil {
		if err := i.Storage.Start(lc); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}

	lc.Register("durable_store", lifecycle.ReadyFunc(func() bool { return i.Store.Durable() }))
	if i.Index != nil {
		lc.Register("corpus", i.Index)
	}

	lc.OnStartup(func() {
		i.Prepare(lc.Context())
		if i.watcher != nil {
			if err := i.watcher.Start(lc.Context()); err != nil {
				i.Logger.Warn("corpus watcher not started", "error", err)
			}
		}
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := i.Close(); err != nil {
			i.Logger.Error("infrastructure shutdown error", "error", err)
			return
		}
		i.Logger.Info("infrastructure shutdown complete")
	})

	return nil
}

// Close releases the watcher, the event connection, and the run store.
func (i *Infrastructure) Close() error {
	var errs []error

	if i.watcher != nil {
		errs = append(errs, i.watcher.Close())
	}
	if i.nats != nil {
		errs = append(errs, i.nats.Drain())
	}
	if i.Store != nil {
		errs = append(errs, i.Store.Close())
	}

	return errors.Join(errs...)
}
