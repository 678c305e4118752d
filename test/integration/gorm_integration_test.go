package integration

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/model"
	"windback-be/internal/pkg/logger"
	"windback-be/internal/pkg/mailer"
	"windback-be/internal/repository/unitofwork"
	"windback-be/internal/service"
	"windback-be/pkg/database"
	"windback-be/pkg/normalizer"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMailer struct {
	mu   sync.Mutex
	keys []string
}

func (m *countingMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, msg.IdempotencyKey)
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, projectId uuid.UUID, kind entity.NotificationKind, payload map[string]interface{}) {
}

func (nopNotifier) Deliver(ctx context.Context, msg dto.NotificationMessage) error { return nil }

func (nopNotifier) Consume(ctx context.Context) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, topic string, payload interface{}) error { return nil }

func openFactory(t *testing.T) unitofwork.RepositoryFactory {
	t.Helper()
	// Load .env from root
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	require.NoError(t, model.Migrate(gormDB))
	return unitofwork.NewRepositoryFactory(gormDB)
}

func TestGormRecoveryLifecycle(t *testing.T) {
	factory := openFactory(t)
	ctx := context.Background()
	nop := logger.NewNopLogger()

	projects := service.NewProjectService(factory)
	created, err := projects.Create(ctx, &dto.CreateProjectRequest{Name: "Integration " + uuid.NewString()[:8]})
	require.NoError(t, err)
	project, err := projects.Resolve(ctx, created.Slug)
	require.NoError(t, err)

	churn := service.NewChurnService(factory, nopPublisher{}, nopNotifier{}, nop)
	ev := &normalizer.Event{
		Provider:          normalizer.ProviderCustom,
		Kind:              normalizer.KindChurn,
		ProviderEventType: normalizer.CustomEventSubscriptionCanceled,
		CustomerID:        "cus_it",
		CustomerEmail:     "it@example.com",
		SubscriptionID:    "sub_it",
		CancelReason:      "too_expensive",
		Currency:          "usd",
	}

	t.Run("churn ingestion is idempotent", func(t *testing.T) {
		first, created, err := churn.RecordChurn(ctx, project, ev)
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := churn.RecordChurn(ctx, project, ev)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.Id, second.Id)
	})

	t.Run("only one active template per reason", func(t *testing.T) {
		templates := service.NewTemplateService(factory)
		for _, name := range []string{"a", "b"} {
			_, err := templates.Create(ctx, project.Id, &dto.TemplateRequest{
				CancelReason: "poor_support", Name: name, Subject: "s", Body: "b", IsActive: true,
			})
			require.NoError(t, err)
		}
		list, err := templates.List(ctx, project.Id)
		require.NoError(t, err)
		active := 0
		for _, tpl := range list {
			if tpl.IsActive {
				active++
			}
		}
		assert.Equal(t, 1, active)
	})

	t.Run("concurrent dunning ticks send each email once", func(t *testing.T) {
		mail := &countingMailer{}
		dunning := service.NewDunningService(factory, mail, nopNotifier{}, nop, nil)
		_, _, err := dunning.RecordFailure(ctx, project, &normalizer.Event{
			Provider:          normalizer.ProviderCustom,
			Kind:              normalizer.KindPaymentFailed,
			ProviderEventType: normalizer.CustomEventPaymentFailed,
			CustomerID:        "cus_it",
			CustomerEmail:     "it@example.com",
			InvoiceID:         "in_" + uuid.NewString(),
			AmountCents:       1000,
			Currency:          "usd",
		})
		require.NoError(t, err)

		scheduler := service.NewDunningScheduler(factory, dunning, service.SchedulerConfig{
			TickInterval: time.Hour,
			ClaimLease:   time.Minute,
			BatchSize:    100,
			PoolSize:     4,
		}, nop, nil)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := scheduler.Tick(ctx)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		seen := map[string]int{}
		for _, k := range mail.keys {
			seen[k]++
		}
		for k, n := range seen {
			assert.Equal(t, 1, n, "email %s sent %d times", k, n)
		}
	})
}
