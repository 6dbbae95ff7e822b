package dispatch

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alertstream/alert"
	"github.com/c360/alertstream/bridge"
	"github.com/c360/alertstream/config"
	"github.com/c360/alertstream/eventbus"
	"github.com/c360/alertstream/expression"
	"github.com/c360/alertstream/message"
	"github.com/c360/alertstream/trigger"
)

type recordedDelivery struct {
	channel   *bridge.Channel
	msg       *message.Template
	transport string
}

type fakeDeliverer struct {
	mu         sync.Mutex
	deliveries []recordedDelivery
	wg         sync.WaitGroup
}

func (d *fakeDeliverer) record(channel *bridge.Channel, msg *message.Template, transport string) {
	d.mu.Lock()
	d.deliveries = append(d.deliveries, recordedDelivery{channel: channel, msg: msg, transport: transport})
	d.mu.Unlock()
	d.wg.Done()
}

func (d *fakeDeliverer) DeliverDirect(_ context.Context, channel *bridge.Channel, msg *message.Template) error {
	d.record(channel, msg, "direct")
	return nil
}

func (d *fakeDeliverer) DeliverWebhook(_ context.Context, channel *bridge.Channel, msg *message.Template) error {
	d.record(channel, msg, "webhook")
	return nil
}

func (d *fakeDeliverer) all() []recordedDelivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]recordedDelivery, len(d.deliveries))
	copy(out, d.deliveries)
	return out
}

func newStore(t *testing.T, yaml string) *alert.Store {
	t.Helper()
	classifier, err := trigger.NewClassifier(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = classifier.Close() })

	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)

	store := alert.NewStore(classifier)
	_, err = store.Reload(cfg)
	require.NoError(t, err)
	return store
}

func newTestPipeline(t *testing.T, store *alert.Store, deliverer bridge.Deliverer, opts ...PipelineOption) *Pipeline {
	t.Helper()
	resolver := bridge.NewResolver(
		bridge.MappedNames(map[string]string{"staff": "100", "general": "200"}),
		bridge.RawIDs(),
	)
	pipeline, err := NewPipeline(store, resolver, deliverer, expression.New(), opts...)
	require.NoError(t, err)
	require.NoError(t, pipeline.Start(context.Background()))
	t.Cleanup(func() { _ = pipeline.Stop(time.Second) })
	return pipeline
}

func deathEvent(cancelled bool) *eventbus.GenericEvent {
	return &eventbus.GenericEvent{
		Name:   "PlayerDeathEvent",
		Cancel: cancelled,
		Source: &eventbus.Actor{Name: "Steve", DisplayName: "§6Steve_", World: "nether", Ping: 42},
	}
}

func TestPipeline_DeliversWithPlaceholders(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
    Content: "{name} died in {world} (ping {ping})"
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	deliverer.wg.Wait()

	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "100", deliveries[0].channel.ID)
	assert.Equal(t, "direct", deliveries[0].transport)
	assert.Equal(t, "Steve died in nether (ping 42)", deliveries[0].msg.Content)
}

func TestPipeline_DisplayNameStripped(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
    Content: "{displayname} died"
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	deliverer.wg.Wait()

	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "Steve_ died", deliveries[0].msg.Content,
		"color codes stripped, markdown left alone outside the author line")
}

func TestPipeline_AuthorNameEscaped(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
    Embed:
      Enabled: true
      Author:
        Name: "{displayname}"
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	deliverer.wg.Wait()

	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	require.NotNil(t, deliveries[0].msg.Embed)
	assert.Equal(t, `Steve\_`, deliveries[0].msg.Embed.AuthorName)
}

func TestPipeline_CancellationPolicy(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
    Content: x
  - Trigger: PlayerDeathEvent
    Async: false
    IgnoreCancelled: false
    Target: general
    Content: y
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	// Only the rule that accepts cancelled events fires.
	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(true))
	deliverer.wg.Wait()

	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "200", deliveries[0].channel.ID)
}

func TestPipeline_ConditionsPerChannel(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target:
      - staff
      - general
    Conditions:
      - "channel.Name == 'staff'"
    Content: x
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	deliverer.wg.Wait()

	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "staff", deliveries[0].channel.Name)
}

func TestPipeline_ConditionFailureMeansNotMet(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
    Conditions:
      - "unknown.variable == 1"
    Content: x
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	assert.Empty(t, deliverer.all())
}

func TestPipeline_CommandNormalization(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: "/Home"
    Async: false
    Target: staff
    Content: "{name} ran ${command} with ${allArgs}"
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, &eventbus.CommandCall{
		Name:   "PlayerCommandPreprocessEvent",
		Caller: eventbus.Sender{Name: "Steve"},
		Line:   "/essentials:HOME north base",
		Source: &eventbus.Actor{Name: "Steve"},
	})
	deliverer.wg.Wait()

	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "Steve ran /home with north base", deliveries[0].msg.Content)
}

func TestPipeline_AsyncDelivery(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Target: staff
    Content: x
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer, WithWorkers(2, 16))

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	deliverer.wg.Wait()

	require.Len(t, deliverer.all(), 1)
	assert.Positive(t, pipeline.PoolStats().Processed)
}

func TestPipeline_ForcedSyncTriggers(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: BlockBreakEvent
    Target: staff
    Content: x
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	// Async rule, but BlockBreakEvent is forced sync, so the delivery has
	// happened by the time HandleEvent returns.
	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, &eventbus.GenericEvent{Name: "BlockBreakEvent"})
	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	assert.Zero(t, pipeline.PoolStats().Submitted)
}

func TestPipeline_NoTemplateNoDelivery(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	assert.Empty(t, deliverer.all())
}

func TestPipeline_WebhookTransportChosen(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
    Content: x
    Webhook:
      Enable: true
      Name: Reaper
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	deliverer.wg.Wait()

	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "webhook", deliveries[0].transport)
	assert.Equal(t, "Reaper", deliveries[0].msg.Webhook.Name)
}

func TestPipeline_DuplicateTargetsDeduplicated(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target:
      - staff
      - "100"
    Content: x
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	deliverer.wg.Wait()
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, deliverer.all(), 1, "staff and 100 resolve to the same channel")
}

func TestPipeline_TargetSetResolvedPerStrategy(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target:
      - staff
      - general
      - other
    Content: x
`)
	var namedCalls int32
	resolver := bridge.NewResolver(
		bridge.MappedNames(map[string]string{"staff": "100", "general": "200"}),
		bridge.Named(func(_ string) (string, bool) {
			atomic.AddInt32(&namedCalls, 1)
			return "999", true
		}),
	)
	deliverer := &fakeDeliverer{}
	pipeline, err := NewPipeline(store, resolver, deliverer, expression.New())
	require.NoError(t, err)
	require.NoError(t, pipeline.Start(context.Background()))
	t.Cleanup(func() { _ = pipeline.Stop(time.Second) })

	deliverer.wg.Add(2)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	deliverer.wg.Wait()

	assert.Len(t, deliverer.all(), 2, "the first strategy's set wins")
	assert.Zero(t, atomic.LoadInt32(&namedCalls),
		"unresolved leftovers do not fall through to the next strategy")
}

func TestPipeline_ArgsPlaceholderRoundTrip(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: "/say"
    Async: false
    Target: staff
    Content: "{name} says {allArgs}"
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, &eventbus.CommandCall{
		Name:   "PlayerCommandPreprocessEvent",
		Caller: eventbus.Sender{Name: "Ann"},
		Line:   "/say hi there",
		Source: &eventbus.Actor{Name: "Ann"},
	})
	deliverer.wg.Wait()

	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "Ann says hi there", deliveries[0].msg.Content)
}

func TestPipeline_ForcedSyncByRuleTriggers(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger:
      - "/home"
      - BlockBreakEvent
    Target: staff
    Content: x
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	// Any sync-pinned trigger on the rule pins the whole rule, even when the
	// delivered event is one of its other triggers.
	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, &eventbus.CommandCall{
		Name: "PlayerCommandPreprocessEvent",
		Line: "/home",
	})

	require.Len(t, deliverer.all(), 1)
	assert.Zero(t, pipeline.PoolStats().Submitted)
}

func TestPipeline_PlaceholderValuesNotEvaluated(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
    Content: "{displayname} died"
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, &eventbus.GenericEvent{
		Name:   "PlayerDeathEvent",
		Source: &eventbus.Actor{Name: "Mallory", DisplayName: "${1 == 1}"},
	})
	deliverer.wg.Wait()

	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "${1 == 1} died", deliveries[0].msg.Content,
		"expression syntax inside a placeholder value is never evaluated")
}

func TestPipeline_ExpressionResultsResolvePlaceholders(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
    Content: "${marker} calling"
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer,
		WithVars(map[string]any{"marker": "{world}"}))

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	deliverer.wg.Wait()

	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "nether calling", deliveries[0].msg.Content,
		"placeholder tokens produced by an expression still resolve")
}

type emoteIntegration struct{}

func (emoteIntegration) BotName() string         { return "" }
func (emoteIntegration) BotAvatarURL() string    { return "" }
func (emoteIntegration) AvatarURL(string) string { return "" }
func (emoteIntegration) TranslateEmotes(text string, _ *bridge.Channel) string {
	return strings.ReplaceAll(text, ":skull:", "<:skull:123>")
}

func TestPipeline_EmoteAndProviderPasses(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
    Content: "{name} died :skull: on %server%"
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer,
		WithIntegration(emoteIntegration{}),
		WithPlaceholderProvider(func(text string, _ eventbus.Event) string {
			return strings.ReplaceAll(text, "%server%", "lobby")
		}))

	deliverer.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	deliverer.wg.Wait()

	deliveries := deliverer.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "Steve died <:skull:123> on lobby", deliveries[0].msg.Content)
}

type urlAwareDeliverer struct {
	fakeDeliverer
	url string
}

func (d *urlAwareDeliverer) WebhookURL(*message.Template) string { return d.url }

func TestPipeline_WebhookWithoutURLSkipped(t *testing.T) {
	yaml := `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
    Content: x
    Webhook:
      Enable: true
`
	deliverer := &urlAwareDeliverer{}
	pipeline := newTestPipeline(t, newStore(t, yaml), deliverer)

	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	assert.Empty(t, deliverer.all(), "webhook with no resolvable URL is skipped")

	configured := &urlAwareDeliverer{url: "https://example.invalid/hook"}
	pipeline = newTestPipeline(t, newStore(t, yaml), configured)

	configured.wg.Add(1)
	pipeline.HandleEvent(context.Background(), nil, deathEvent(false))
	configured.wg.Wait()

	deliveries := configured.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "webhook", deliveries[0].transport)
}

func TestPipeline_DetachesFromIrrelevantCategory(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: false
    Target: staff
    Content: x
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	category := eventbus.NewCategory("EntityExplodeEvent")
	category.Register(pipeline)

	pipeline.HandleEvent(context.Background(), category, &eventbus.GenericEvent{Name: "EntityExplodeEvent"})

	assert.Empty(t, deliverer.all())
	assert.Empty(t, category.Listeners(), "no rule listens for the event, so the pipeline detaches")
}

func TestPipeline_StaysOnCommandCategories(t *testing.T) {
	store := newStore(t, `
Alerts:
  - Trigger: "/home"
    Async: false
    Target: staff
    Content: x
`)
	deliverer := &fakeDeliverer{}
	pipeline := newTestPipeline(t, store, deliverer)

	category := eventbus.NewCategory("PlayerCommandPreprocessEvent")
	category.Register(pipeline)

	// A non-matching command must not detach: some rule still wants commands.
	pipeline.HandleEvent(context.Background(), category, &eventbus.CommandCall{
		Name: "PlayerCommandPreprocessEvent",
		Line: "/spawn",
	})

	assert.Empty(t, deliverer.all())
	assert.Len(t, category.Listeners(), 1)
}

func TestNormalizeCommand(t *testing.T) {
	tests := []struct {
		line string
		id   trigger.ID
		args []string
	}{
		{"/home", "/home", nil},
		{"/HOME north", "/home", []string{"north"}},
		{"/essentials:home", "/home", nil},
		{"/worldedit:/set stone", "/set", []string{"stone"}},
		{"home", "/home", nil},
		{"  /tp  a  b ", "/tp", []string{"a", "b"}},
		{"/", "", nil},
		{"", "", nil},
	}
	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			id, args := NormalizeCommand(test.line)
			assert.Equal(t, test.id, id)
			assert.Equal(t, test.args, args)
		})
	}
}
