package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/c360/alertstream/alert"
	"github.com/c360/alertstream/bridge"
	"github.com/c360/alertstream/errors"
	"github.com/c360/alertstream/eventbus"
	"github.com/c360/alertstream/expression"
	"github.com/c360/alertstream/message"
	"github.com/c360/alertstream/metric"
	"github.com/c360/alertstream/pkg/worker"
	"github.com/c360/alertstream/trigger"
)

// Event names (lower-cased) that pin a whole rule to the caller's goroutine,
// even when the rule asks for async. Mutating these events after the handler
// returns would race with the event source. Default: BlockBreakEvent.
var defaultSyncTriggers = map[string]struct{}{
	"blockbreakevent": {},
}

// job is one rule/event pair scheduled on the worker pool.
type job struct {
	rule    *alert.Rule
	event   eventbus.Event
	id      trigger.ID
	args    []string
	traceID string
}

// Pipeline matches events against alert rules and delivers the results.
// It implements eventbus.Listener; HandleEvent never returns an error to the
// bus, failures are logged and counted instead.
type Pipeline struct {
	store     *alert.Store
	resolver  *bridge.Resolver
	deliverer bridge.Deliverer
	evaluator expression.Evaluator

	integration bridge.Integration
	server      bridge.ServerInfo
	provider    PlaceholderProvider
	extraVars   map[string]any

	pool         *worker.Pool[job]
	workers      int
	queueSize    int
	syncTriggers map[string]struct{}

	logger  *slog.Logger
	metrics *metric.Metrics
	now     func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithIntegration wires the optional bridge identity used by placeholders.
func WithIntegration(integration bridge.Integration) PipelineOption {
	return func(p *Pipeline) { p.integration = integration }
}

// WithServerInfo wires live server statistics for the {tps} placeholder and
// the "server" condition variable.
func WithServerInfo(server bridge.ServerInfo) PipelineOption {
	return func(p *Pipeline) { p.server = server }
}

// PlaceholderProvider is a host-supplied final rendering pass, e.g. a plugin
// placeholder service. It runs after the built-in table.
type PlaceholderProvider func(text string, event eventbus.Event) string

// WithPlaceholderProvider wires the optional external placeholder pass.
func WithPlaceholderProvider(fn PlaceholderProvider) PipelineOption {
	return func(p *Pipeline) { p.provider = fn }
}

// WithVars adds extra condition variables, e.g. "engine" and "client".
func WithVars(vars map[string]any) PipelineOption {
	return func(p *Pipeline) {
		if p.extraVars == nil {
			p.extraVars = make(map[string]any, len(vars))
		}
		for k, v := range vars {
			p.extraVars[k] = v
		}
	}
}

// WithMetrics wires the core pipeline metrics.
func WithMetrics(metrics *metric.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = metrics }
}

// WithWorkers sizes the async worker pool.
func WithWorkers(workers, queueSize int) PipelineOption {
	return func(p *Pipeline) {
		p.workers = workers
		p.queueSize = queueSize
	}
}

// WithSyncTriggers replaces the set of event names that pin their rules to
// synchronous processing.
func WithSyncTriggers(names ...string) PipelineOption {
	return func(p *Pipeline) {
		p.syncTriggers = make(map[string]struct{}, len(names))
		for _, name := range names {
			p.syncTriggers[strings.ToLower(name)] = struct{}{}
		}
	}
}

// NewPipeline creates a pipeline. Start must be called before events arrive
// for async rules to be processed.
func NewPipeline(
	store *alert.Store,
	resolver *bridge.Resolver,
	deliverer bridge.Deliverer,
	evaluator expression.Evaluator,
	opts ...PipelineOption,
) (*Pipeline, error) {
	if store == nil || resolver == nil || deliverer == nil || evaluator == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Pipeline", "NewPipeline",
			"store, resolver, deliverer and evaluator are required")
	}

	p := &Pipeline{
		store:        store,
		resolver:     resolver,
		deliverer:    deliverer,
		evaluator:    evaluator,
		syncTriggers: defaultSyncTriggers,
		logger:       slog.Default().With("component", "dispatch"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	pool, err := worker.NewPool(p.workers, p.queueSize, p.process)
	if err != nil {
		return nil, errors.Wrap(err, "Pipeline", "NewPipeline", "create worker pool")
	}
	p.pool = pool
	return p, nil
}

// Start launches the async worker pool.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "Pipeline", "Start", "start worker pool")
	}
	p.logger.Info("dispatch pipeline started")
	return nil
}

// Stop drains the worker pool.
func (p *Pipeline) Stop(timeout time.Duration) error {
	if err := p.pool.Stop(timeout); err != nil {
		return errors.WrapTransient(err, "Pipeline", "Stop", "drain worker pool")
	}
	return nil
}

// PoolStats exposes worker pool counters for health reporting.
func (p *Pipeline) PoolStats() worker.Stats { return p.pool.Stats() }

// HandleEvent implements eventbus.Listener.
func (p *Pipeline) HandleEvent(ctx context.Context, category *eventbus.Category, event eventbus.Event) {
	id := trigger.ID(strings.ToLower(event.EventName()))
	var args []string
	command, isCommand := event.(eventbus.CommandEvent)
	if isCommand {
		id, args = NormalizeCommand(command.CommandLine())
		if id == "" {
			return
		}
	}

	rules := p.store.Snapshot()
	if !relevant(rules, id, isCommand) {
		// The host keeps raising this event type but no rule listens for
		// it. Detach from the category; the next reload re-attaches.
		if category != nil && category.Unregister(p) {
			p.logger.Debug("no rule listens on category, detaching", "category", category.Name())
		}
		return
	}

	if p.metrics != nil {
		p.metrics.EventsObserved.WithLabelValues(string(id)).Inc()
	}

	for _, rule := range rules {
		if !rule.Matches(id) {
			continue
		}
		if p.metrics != nil {
			p.metrics.AlertsMatched.WithLabelValues(string(id)).Inc()
		}

		work := job{rule: rule, event: event, id: id, args: args, traceID: uuid.NewString()}
		if p.effectiveAsync(rule) {
			if err := p.pool.Submit(work); err != nil {
				p.skip("queue_full")
				p.logger.Warn("async queue full, alert dropped",
					"alert", rule.Key(), "trigger", id, "trace_id", work.traceID)
			}
			continue
		}
		if err := p.process(ctx, work); err != nil {
			p.logger.Error("alert processing failed",
				"alert", rule.Key(), "trigger", id, "trace_id", work.traceID, "error", err)
		}
	}
}

// relevant reports whether any rule in the set could ever fire for this
// event shape: commands need at least one command trigger anywhere, plain
// events need their name among the active triggers.
func relevant(rules []*alert.Rule, id trigger.ID, isCommand bool) bool {
	for _, rule := range rules {
		for _, t := range rule.Triggers {
			if isCommand {
				if t.IsCommand() {
					return true
				}
			} else if t == id {
				return true
			}
		}
	}
	return false
}

// effectiveAsync honors the rule's Async flag unless any of the rule's
// triggers names a sync-pinned event type. The whole rule runs inline then,
// whichever of its triggers fired.
func (p *Pipeline) effectiveAsync(rule *alert.Rule) bool {
	if !rule.Async {
		return false
	}
	for _, t := range rule.Triggers {
		if _, forced := p.syncTriggers[string(t)]; forced {
			return false
		}
	}
	return true
}

// process runs one rule against one event, end to end. Errors are returned
// for counting but never propagate past HandleEvent.
func (p *Pipeline) process(ctx context.Context, work job) error {
	rule, event := work.rule, work.event
	logger := p.logger.With("alert", rule.Key(), "trigger", work.id, "trace_id", work.traceID)

	if rule.IgnoreCancelled {
		if cancellable, ok := event.(eventbus.Cancellable); ok && cancellable.Cancelled() {
			p.skip("cancelled")
			logger.Debug("event was cancelled, skipping")
			return nil
		}
	}

	if rule.Template == nil {
		p.skip("no_message")
		logger.Debug("alert has no message configured, skipping")
		return nil
	}

	if rule.Template.Webhook.Enabled {
		if addresser, ok := p.deliverer.(bridge.WebhookAddresser); ok && addresser.WebhookURL(rule.Template) == "" {
			p.skip("no_webhook_url")
			logger.Debug("webhook enabled but no URL configured, skipping")
			return nil
		}
	}

	channels := p.resolveChannels(ctx, rule, logger)
	if len(channels) == 0 {
		p.skip("no_channel")
		logger.Debug("no delivery channel resolved, skipping")
		return nil
	}

	vars := p.buildVars(event, work.args)

	group, groupCtx := errgroup.WithContext(ctx)
	delivered := make(chan struct{}, len(channels))
	for _, channel := range channels {
		channel := channel
		group.Go(func() error {
			if !p.conditionsMet(rule, channel, vars, logger) {
				return nil
			}
			rendered := p.render(rule.Template, event, vars, channel)
			if err := p.deliver(groupCtx, channel, rendered); err != nil {
				logger.Warn("delivery failed", "channel", channel.Name, "channel_id", channel.ID, "error", err)
				return err
			}
			delivered <- struct{}{}
			return nil
		})
	}
	err := group.Wait()
	close(delivered)

	if len(delivered) > 0 && p.metrics != nil {
		p.metrics.AlertsDispatched.WithLabelValues(string(work.id)).Inc()
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordError("dispatch", errors.Classify(err).String())
		}
		return errors.Wrap(err, "Pipeline", "process", "deliver alert")
	}
	return nil
}

// resolveChannels resolves the rule's whole target list in one pass so the
// resolver's per-strategy short-circuit sees the full reference set.
func (p *Pipeline) resolveChannels(ctx context.Context, rule *alert.Rule, logger *slog.Logger) []*bridge.Channel {
	channels, err := p.resolver.ResolveAll(ctx, rule.Targets)
	if err != nil {
		logger.Debug("targets did not resolve", "targets", rule.Targets, "error", err)
		return nil
	}
	return channels
}

// buildVars assembles the condition variable environment shared by every
// channel of one dispatch.
func (p *Pipeline) buildVars(event eventbus.Event, args []string) map[string]any {
	vars := map[string]any{
		"event": event,
	}
	for k, v := range p.extraVars {
		vars[k] = v
	}
	if p.server != nil {
		vars["server"] = p.server
	}
	if p.integration != nil {
		vars["bridge"] = p.integration
	}
	if withActor, ok := event.(eventbus.HasActor); ok {
		if actor := withActor.Actor(); actor != nil {
			vars["actor"] = actor
		}
	}
	if command, ok := event.(eventbus.CommandEvent); ok {
		base, _ := NormalizeCommand(command.CommandLine())
		vars["sender"] = command.CommandSender()
		vars["command"] = string(base)
		vars["args"] = args
		vars["allArgs"] = strings.Join(args, " ")
	}
	if fielder, ok := event.(eventbus.Fielder); ok {
		vars["data"] = fielder.EventFields()
	}
	return vars
}

// conditionsMet evaluates every rule condition for one channel. A parse or
// evaluation failure counts as not met.
func (p *Pipeline) conditionsMet(rule *alert.Rule, channel *bridge.Channel, base map[string]any, logger *slog.Logger) bool {
	if len(rule.Conditions) == 0 {
		return true
	}
	vars := make(map[string]any, len(base)+1)
	for k, v := range base {
		vars[k] = v
	}
	vars["channel"] = channel

	for _, condition := range rule.Conditions {
		if !expression.Condition(p.evaluator, condition, vars) {
			logger.Debug("condition not met", "condition", condition, "channel", channel.Name)
			return false
		}
	}
	return true
}

// render applies the full translation chain to the template: expression
// fragments first, then the placeholder table (so player-controlled
// placeholder values are never evaluated), then emote translation and the
// external placeholder pass, then color code stripping.
func (p *Pipeline) render(tpl *message.Template, event eventbus.Event, base map[string]any, channel *bridge.Channel) *message.Template {
	pc := &placeholderContext{
		server:      p.server,
		integration: p.integration,
		now:         p.now(),
	}
	if withActor, ok := event.(eventbus.HasActor); ok {
		pc.actor = withActor.Actor()
	}

	vars := make(map[string]any, len(base)+1)
	for k, v := range base {
		vars[k] = v
	}
	vars["channel"] = channel

	return tpl.Translate(func(text string, needsEscaping bool) string {
		if text == "" {
			return ""
		}
		text = message.FormatExpressions(text, func(expr string) (any, error) {
			return p.evaluator.Evaluate(expr, vars)
		})
		text = message.FormatPlaceholders(text, func(key string) (string, bool) {
			if value, ok := pc.resolve(key, needsEscaping); ok {
				return value, true
			}
			return contextValue(vars, key)
		})
		if p.integration != nil {
			text = p.integration.TranslateEmotes(text, channel)
		}
		if p.provider != nil {
			text = p.provider(text, event)
		}
		return bridge.StripFormatting(text)
	})
}

func (p *Pipeline) deliver(ctx context.Context, channel *bridge.Channel, msg *message.Template) error {
	transport := "direct"
	if msg.Webhook.Enabled {
		transport = "webhook"
	}

	start := p.now()
	var err error
	if msg.Webhook.Enabled {
		err = p.deliverer.DeliverWebhook(ctx, channel, msg)
	} else {
		err = p.deliverer.DeliverDirect(ctx, channel, msg)
	}

	if p.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		p.metrics.RecordDelivery(transport, outcome, time.Since(start))
	}
	return err
}

func (p *Pipeline) skip(reason string) {
	if p.metrics != nil {
		p.metrics.AlertsSkipped.WithLabelValues(reason).Inc()
	}
}
