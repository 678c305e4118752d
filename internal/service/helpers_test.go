package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/logger"
	"windback-be/internal/pkg/mailer"
	"windback-be/internal/repository/memory"
	"windback-be/internal/repository/unitofwork"
	"windback-be/pkg/llm"
	"windback-be/pkg/normalizer"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail error
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) setFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *fakeMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

// fakeLLM answers with the strategy label as subject.
type fakeLLM struct {
	calls atomic.Int32
	fail  atomic.Bool
	reply func(prompt string) string

	mu   sync.Mutex
	last llm.Options
}

func (f *fakeLLM) lastOptions() llm.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.Generate(ctx, history[len(history)-1].Content, options...)
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	f.calls.Add(1)
	var opts llm.Options
	for _, o := range options {
		o(&opts)
	}
	f.mu.Lock()
	f.last = opts
	f.mu.Unlock()
	if f.fail.Load() {
		return "", errors.New("model unavailable")
	}
	if f.reply != nil {
		return f.reply(prompt), nil
	}
	label := "email"
	if start := strings.Index(prompt, `using the "`); start >= 0 {
		rest := prompt[start+len(`using the "`):]
		label = rest[:strings.Index(rest, `"`)]
	}
	return fmt.Sprintf("```json\n{\"subject\": %q, \"body\": \"<p>Body for %s</p>\"}\n```", label, label), nil
}

type recordedNotification struct {
	ProjectId uuid.UUID
	Kind      entity.NotificationKind
	Payload   map[string]interface{}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []recordedNotification
}

func (n *fakeNotifier) Notify(ctx context.Context, projectId uuid.UUID, kind entity.NotificationKind, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recordedNotification{ProjectId: projectId, Kind: kind, Payload: payload})
}

func (n *fakeNotifier) Deliver(ctx context.Context, msg dto.NotificationMessage) error { return nil }

func (n *fakeNotifier) Consume(ctx context.Context) error { return nil }

func (n *fakeNotifier) kinds() []entity.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]entity.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][]interface{}
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = map[string][]interface{}{}
	}
	p.messages[topic] = append(p.messages[topic], payload)
	return nil
}

func (p *fakePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[topic])
}

// fakeDirectory answers customer lookups for the custom provider.
type fakeDirectory struct {
	mu        sync.Mutex
	customers map[string][2]string
	err       error
	lookups   int
}

func (d *fakeDirectory) Provider() normalizer.Provider { return normalizer.ProviderCustom }

func (d *fakeDirectory) Lookup(ctx context.Context, customerID string) (string, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if d.err != nil {
		return "", "", d.err
	}
	c := d.customers[customerID]
	return c[0], c[1], nil
}

// testEnv wires every service against the in-memory store.
type testEnv struct {
	clock      *testClock
	store      *memory.Store
	factory    unitofwork.RepositoryFactory
	mailer     *fakeMailer
	llm        *fakeLLM
	notifier   *fakeNotifier
	publisher  *fakePublisher
	directory  *fakeDirectory
	project    *entity.Project
	projects   IProjectService
	churn      IChurnService
	retention  IRetentionService
	templates  ITemplateService
	sender     ISendPolicy
	generator  IVariantGenerator
	dunning    IDunningService
	scheduler  IDunningScheduler
	webhooks   IWebhookService
	projectDTO *dto.CreateProjectResponse
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newTestClock()
	store := memory.NewStore().WithClock(clock.Now)
	factory := memory.NewRepositoryFactory(store)
	log := logger.NewNopLogger()

	env := &testEnv{
		clock:     clock,
		store:     store,
		factory:   factory,
		mailer:    &fakeMailer{},
		llm:       &fakeLLM{},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		directory: &fakeDirectory{customers: map[string][2]string{}},
	}

	env.projects = NewProjectService(factory)
	env.churn = NewChurnService(factory, env.publisher, env.notifier, log)
	env.retention = NewRetentionService(factory)
	env.templates = NewTemplateService(factory)
	env.sender = NewSendPolicy(factory, env.mailer, 5*time.Minute, log)
	env.generator = NewVariantGenerator(factory, env.llm, env.retention, env.sender, GeneratorConfig{
		Concurrency: 3,
		Temperature: 0.7,
		Timeout:     5 * time.Second,
	}, log)
	env.dunning = NewDunningService(factory, env.mailer, env.notifier, log, clock.Now)
	env.scheduler = NewDunningScheduler(factory, env.dunning, SchedulerConfig{
		TickInterval: time.Hour,
		ClaimLease:   10 * time.Minute,
		BatchSize:    50,
		PoolSize:     4,
	}, log, clock.Now)
	env.webhooks = NewWebhookService(
		normalizer.DefaultRegistry(5*time.Minute).WithDirectory(env.directory),
		memory.NewReplayGuard(),
		time.Hour,
		env.projects, env.churn, env.dunning, log,
	)

	created, err := env.projects.Create(context.Background(), &dto.CreateProjectRequest{
		Name:      "Acme Analytics",
		FromName:  "Acme",
		FromEmail: "hello@acme.test",
	})
	require.NoError(t, err)
	env.projectDTO = created

	env.project, err = env.projects.Resolve(context.Background(), created.Slug)
	require.NoError(t, err)
	return env
}

// setAutoSend flips auto-send and returns the refreshed project.
func (e *testEnv) setAutoSend(t *testing.T, on bool) {
	t.Helper()
	_, err := e.projects.UpdateSettings(context.Background(), e.project.Slug, &dto.UpdateProjectSettingsRequest{AutoSend: &on})
	require.NoError(t, err)
	e.project, err = e.projects.Resolve(context.Background(), e.project.Slug)
	require.NoError(t, err)
}

func churnEvent(subscription, reason string) *normalizer.Event {
	return &normalizer.Event{
		Provider:          normalizer.ProviderCustom,
		Kind:              normalizer.KindChurn,
		ProviderEventType: normalizer.CustomEventSubscriptionCanceled,
		CustomerID:        "cus_" + subscription,
		CustomerEmail:     "jane@example.com",
		CustomerName:      "Jane",
		SubscriptionID:    subscription,
		PlanName:          "Pro",
		MRRCents:          4900,
		Currency:          "usd",
		TenureDays:        120,
		CancelReason:      reason,
	}
}

func (e *testEnv) recordChurn(t *testing.T, subscription, reason string) *entity.ChurnEvent {
	t.Helper()
	event, created, err := e.churn.RecordChurn(context.Background(), e.project, churnEvent(subscription, reason))
	require.NoError(t, err)
	require.True(t, created)
	return event
}

func (e *testEnv) generated(t *testing.T, subscription, reason string) (*entity.ChurnEvent, *dto.GenerateVariantsResponse) {
	t.Helper()
	event := e.recordChurn(t, subscription, reason)
	res, err := e.generator.Generate(context.Background(), e.project, event.Id)
	require.NoError(t, err)
	return event, res
}

func paymentFailedEvent(invoice string) *normalizer.Event {
	return &normalizer.Event{
		Provider:          normalizer.ProviderCustom,
		Kind:              normalizer.KindPaymentFailed,
		ProviderEventType: normalizer.CustomEventPaymentFailed,
		CustomerID:        "cus_1",
		CustomerEmail:     "jane@example.com",
		CustomerName:      "Jane",
		InvoiceID:         invoice,
		AmountCents:       4900,
		Currency:          "usd",
		FailureReason:     "card_declined",
	}
}
