package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/alertstream/alert"
	"github.com/c360/alertstream/bridge"
	"github.com/c360/alertstream/config"
	"github.com/c360/alertstream/dispatch"
	"github.com/c360/alertstream/errors"
	"github.com/c360/alertstream/eventbus"
	"github.com/c360/alertstream/expression"
	"github.com/c360/alertstream/intercept"
	"github.com/c360/alertstream/metric"
	"github.com/c360/alertstream/trigger"
)

// Version is reported through the "engine" condition variable and startup
// logs.
const Version = "1.0.0"

// Info is what rule conditions see as the "engine" variable.
type Info struct {
	Name      string
	Version   string
	StartedAt time.Time
}

// Engine owns the full alert pipeline lifecycle.
type Engine struct {
	cfg        *config.Config
	configPath string

	classifier  *trigger.Classifier
	store       *alert.Store
	bus         *eventbus.Bus
	pipeline    *dispatch.Pipeline
	interceptor *intercept.Interceptor

	registry *metric.MetricsRegistry
	logger   *slog.Logger
	started  atomic.Bool
	info     Info

	// deferred construction inputs
	resolver      *bridge.Resolver
	deliverer     bridge.Deliverer
	integration   bridge.Integration
	server        bridge.ServerInfo
	evaluator     expression.Evaluator
	provider      dispatch.PlaceholderProvider
	workers       int
	queueSize     int
	denyList      []string
	syncTriggers  []string
	cancelRuntime context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfigPath enables ReloadAlerts to re-read the file from disk.
func WithConfigPath(path string) Option {
	return func(e *Engine) { e.configPath = path }
}

// WithMetricsRegistry wires Prometheus metrics through the whole pipeline.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(e *Engine) { e.registry = registry }
}

// WithIntegration wires the bridge identity used by placeholders and the
// "bridge" condition variable.
func WithIntegration(integration bridge.Integration) Option {
	return func(e *Engine) { e.integration = integration }
}

// WithServerInfo wires live server statistics.
func WithServerInfo(server bridge.ServerInfo) Option {
	return func(e *Engine) { e.server = server }
}

// WithEvaluator replaces the default condition evaluator.
func WithEvaluator(evaluator expression.Evaluator) Option {
	return func(e *Engine) { e.evaluator = evaluator }
}

// WithPlaceholderProvider wires the host's external placeholder pass into
// message rendering.
func WithPlaceholderProvider(fn dispatch.PlaceholderProvider) Option {
	return func(e *Engine) { e.provider = fn }
}

// WithWorkers sizes the async dispatch pool.
func WithWorkers(workers, queueSize int) Option {
	return func(e *Engine) {
		e.workers = workers
		e.queueSize = queueSize
	}
}

// WithDenyList replaces the interceptor's default deny list.
func WithDenyList(names ...string) Option {
	return func(e *Engine) { e.denyList = names }
}

// WithSyncTriggers replaces the event names that always dispatch
// synchronously.
func WithSyncTriggers(names ...string) Option {
	return func(e *Engine) { e.syncTriggers = names }
}

// New builds an engine from a parsed configuration and a bridge. Nothing
// runs until Start.
func New(cfg *config.Config, resolver *bridge.Resolver, deliverer bridge.Deliverer, opts ...Option) (*Engine, error) {
	if cfg == nil || resolver == nil || deliverer == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "New",
			"configuration, resolver and deliverer are required")
	}

	e := &Engine{
		cfg:       cfg,
		resolver:  resolver,
		deliverer: deliverer,
		logger:    slog.Default().With("component", "engine"),
		info:      Info{Name: "alertstream", Version: Version},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.evaluator == nil {
		e.evaluator = expression.New()
	}
	return e, nil
}

// Bus returns the event bus inputs publish to. It is created lazily so it is
// available before Start.
func (e *Engine) Bus() *eventbus.Bus {
	if e.bus == nil {
		e.bus = eventbus.NewBus()
	}
	return e.bus
}

// Start builds the remaining components, loads the alert rules and attaches
// the interceptor to the bus.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Engine", "Start", "engine running")
	}
	e.info.StartedAt = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancelRuntime = cancel

	classifier, err := trigger.NewClassifier(runCtx)
	if err != nil {
		cancel()
		e.started.Store(false)
		return errors.Wrap(err, "Engine", "Start", "create trigger classifier")
	}
	e.classifier = classifier
	e.store = alert.NewStore(classifier)

	var coreMetrics *metric.Metrics
	if e.registry != nil {
		coreMetrics = e.registry.CoreMetrics()
		e.store.OnReload(func(result alert.ReloadResult) {
			coreMetrics.RulesActive.Set(float64(result.Count))
		})
	}

	pipelineOpts := []dispatch.PipelineOption{
		dispatch.WithWorkers(e.workers, e.queueSize),
		dispatch.WithVars(map[string]any{
			"engine": e.info,
			"client": e.deliverer,
		}),
	}
	if e.integration != nil {
		pipelineOpts = append(pipelineOpts, dispatch.WithIntegration(e.integration))
	}
	if e.server != nil {
		pipelineOpts = append(pipelineOpts, dispatch.WithServerInfo(e.server))
	}
	if e.provider != nil {
		pipelineOpts = append(pipelineOpts, dispatch.WithPlaceholderProvider(e.provider))
	}
	if coreMetrics != nil {
		pipelineOpts = append(pipelineOpts, dispatch.WithMetrics(coreMetrics))
	}
	if len(e.syncTriggers) > 0 {
		pipelineOpts = append(pipelineOpts, dispatch.WithSyncTriggers(e.syncTriggers...))
	}

	pipeline, err := dispatch.NewPipeline(e.store, e.resolver, e.deliverer, e.evaluator, pipelineOpts...)
	if err != nil {
		cancel()
		e.started.Store(false)
		return errors.Wrap(err, "Engine", "Start", "create dispatch pipeline")
	}
	e.pipeline = pipeline

	var interceptOpts []intercept.Option
	if len(e.denyList) > 0 {
		interceptOpts = append(interceptOpts, intercept.WithDenyList(e.denyList...))
	}
	interceptor, err := intercept.NewInterceptor(e.Bus(), pipeline, interceptOpts...)
	if err != nil {
		cancel()
		e.started.Store(false)
		return errors.Wrap(err, "Engine", "Start", "create interceptor")
	}
	e.interceptor = interceptor

	// A reload can activate triggers on categories the pipeline detached
	// from, and zero rules means nothing should be listening at all.
	e.store.OnReload(func(result alert.ReloadResult) {
		if result.Count == 0 {
			interceptor.Unregister()
			return
		}
		if err := interceptor.Register(); err != nil {
			e.logger.Warn("re-attach after reload failed", "error", err)
		}
	})

	if err := e.pipeline.Start(runCtx); err != nil {
		cancel()
		e.started.Store(false)
		return err
	}
	if err := e.interceptor.Start(runCtx); err != nil {
		_ = e.pipeline.Stop(5 * time.Second)
		cancel()
		e.started.Store(false)
		return err
	}

	if _, err := e.ReloadAlerts(); err != nil {
		e.logger.Warn("initial alert load reported a problem", "error", err)
	}

	e.logger.Info("engine started", "version", Version)
	return nil
}

// ReloadAlerts re-reads the configuration (from disk when a path is set) and
// swaps the active rule set.
func (e *Engine) ReloadAlerts() (alert.ReloadResult, error) {
	if !e.started.Load() {
		return alert.ReloadResult{}, errors.WrapInvalid(errors.ErrNotStarted, "Engine", "ReloadAlerts", "engine not running")
	}
	if e.configPath != "" {
		if err := e.cfg.Reload(e.configPath); err != nil {
			return alert.ReloadResult{}, errors.Wrap(err, "Engine", "ReloadAlerts", "reload configuration file")
		}
	}

	result, err := e.store.Reload(e.cfg)
	if err != nil {
		return result, err
	}
	e.logger.Info("alerts registered", "count", result.Count)
	return result, nil
}

// Alerts returns the active rule set.
func (e *Engine) Alerts() []*alert.Rule {
	if e.store == nil {
		return nil
	}
	return e.store.Snapshot()
}

// Register re-attaches the event listener to every allowed category.
func (e *Engine) Register() error {
	if !e.started.Load() {
		return errors.WrapInvalid(errors.ErrNotStarted, "Engine", "Register", "engine not running")
	}
	return e.interceptor.Register()
}

// Unregister detaches the event listener everywhere. Alerts stop firing
// until Register or the next reload.
func (e *Engine) Unregister() {
	if !e.started.Load() {
		return
	}
	e.interceptor.Unregister()
}

// Stop tears the pipeline down in reverse start order.
func (e *Engine) Stop(timeout time.Duration) error {
	if !e.started.CompareAndSwap(true, false) {
		return errors.WrapInvalid(errors.ErrNotStarted, "Engine", "Stop", "engine not running")
	}

	var firstErr error
	if err := e.interceptor.Stop(timeout); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.pipeline.Stop(timeout); err != nil && firstErr == nil {
		firstErr = err
	}
	if e.classifier != nil {
		if err := e.classifier.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.cancelRuntime != nil {
		e.cancelRuntime()
	}
	e.logger.Info("engine stopped")
	return firstErr
}
