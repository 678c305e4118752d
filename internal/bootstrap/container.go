package bootstrap

import (
	"context"
	"log"
	"net/http"
	"time"

	"windback-be/internal/config"
	"windback-be/internal/controller"
	"windback-be/internal/pkg/logger"
	"windback-be/internal/pkg/mailer"
	"windback-be/internal/repository/cache"
	"windback-be/internal/repository/contract"
	"windback-be/internal/repository/memory"
	"windback-be/internal/repository/unitofwork"
	"windback-be/internal/service"
	"windback-be/pkg/llm/factory"
	pktNats "windback-be/pkg/nats"
	"windback-be/pkg/normalizer"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	WebhookController   controller.IWebhookController
	ProjectController   controller.IProjectController
	ChurnController     controller.IChurnController
	DunningController   controller.IDunningController
	RetentionController controller.IRetentionController
	TemplateController  controller.ITemplateController
	TrackingController  controller.ITrackingController

	// Background Services (Exposed for main.go to run)
	ConsumerService     service.IConsumerService
	NotificationService service.INotificationService
	DunningScheduler    service.IDunningScheduler

	ProjectService service.IProjectService
	Logger         logger.ILogger

	closers []func()
}

// NewContainer wires every service. A nil db selects the in-memory store.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	deliveryLogger := logger.NewIsolatedLogger(cfg.App.NotificationLogPath)

	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	} else {
		log.Println("[WARN] Using in-memory storage, data is lost on restart")
		uowFactory = memory.NewRepositoryFactory(memory.NewStore())
	}

	var emailService mailer.IMailer
	if cfg.SMTP.Host != "" {
		emailService = mailer.NewSMTPMailer(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Email,
			cfg.SMTP.Password,
			cfg.SMTP.Email,
			cfg.SMTP.SenderName,
			cfg.SMTP.Timeout,
			sysLogger,
		)
	} else {
		log.Println("[WARN] SMTP_HOST not set, emails are logged instead of sent")
		emailService = mailer.NewLogMailer(sysLogger)
	}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)

	c := &Container{Logger: sysLogger}
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 2.5 Infrastructure
	// NATS is optional; without it transitions stay in-process.
	var eventPublisher service.EventPublisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			eventPublisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	replayGuard := newReplayGuard(cfg.App.RedisURL, c)

	llmProvider, err := factory.NewLLMProvider(llmConfig(cfg))
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 3. Services
	publisherService := service.NewPublisherService(pubSub)
	notificationService := service.NewNotificationService(
		uowFactory,
		publisherService,
		pubSub,
		eventPublisher,
		&http.Client{Timeout: 10 * time.Second},
		sysLogger,
		deliveryLogger,
	)

	projectService := service.NewProjectService(uowFactory)
	retentionService := service.NewRetentionService(uowFactory)
	templateService := service.NewTemplateService(uowFactory)
	churnService := service.NewChurnService(uowFactory, publisherService, notificationService, sysLogger)
	sendPolicy := service.NewSendPolicy(uowFactory, emailService, cfg.Send.ClaimLease, sysLogger)
	generator := service.NewVariantGenerator(uowFactory, llmProvider, retentionService, sendPolicy, service.GeneratorConfig{
		Concurrency: cfg.Ai.Concurrency,
		Temperature: cfg.Ai.Temperature,
		MaxTokens:   cfg.Ai.MaxTokens,
		Timeout:     cfg.Ai.Timeout,
	}, sysLogger)
	dunningService := service.NewDunningService(uowFactory, emailService, notificationService, sysLogger, nil)
	scheduler := service.NewDunningScheduler(uowFactory, dunningService, service.SchedulerConfig{
		TickInterval: cfg.Dunning.TickInterval,
		ClaimLease:   cfg.Dunning.ClaimLease,
		BatchSize:    cfg.Dunning.BatchSize,
		PoolSize:     cfg.Dunning.PoolSize,
	}, sysLogger, nil)
	registry := normalizer.DefaultRegistry(cfg.Webhook.SignatureTolerance)
	if cfg.Webhook.StripeSecretKey != "" {
		registry.WithDirectory(normalizer.NewStripeDirectory(cfg.Webhook.StripeSecretKey, nil))
	}
	webhookService := service.NewWebhookService(
		registry,
		replayGuard,
		cfg.Webhook.ReplayTTL,
		projectService,
		churnService,
		dunningService,
		sysLogger,
	)
	consumerService := service.NewConsumerService(pubSub, uowFactory, generator, sysLogger)

	// 4. Controllers
	c.WebhookController = controller.NewWebhookController(webhookService)
	c.ProjectController = controller.NewProjectController(projectService)
	c.ChurnController = controller.NewChurnController(projectService, churnService, generator, sendPolicy)
	c.DunningController = controller.NewDunningController(projectService, dunningService)
	c.RetentionController = controller.NewRetentionController(projectService, retentionService)
	c.TemplateController = controller.NewTemplateController(projectService, templateService)
	c.TrackingController = controller.NewTrackingController(sendPolicy)

	c.ConsumerService = consumerService
	c.NotificationService = notificationService
	c.DunningScheduler = scheduler
	c.ProjectService = projectService
	return c
}

// StartBackground subscribes the in-process consumers.
func (c *Container) StartBackground(ctx context.Context) error {
	if err := c.ConsumerService.Consume(ctx); err != nil {
		return err
	}
	return c.NotificationService.Consume(ctx)
}

func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

func llmConfig(cfg *config.Config) factory.Config {
	baseURL := cfg.Ai.OllamaBaseURL
	if cfg.Ai.LLMProvider == "huggingface" {
		baseURL = cfg.Ai.HFBaseURL
	}
	return factory.Config{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  baseURL,
		APIKey:   cfg.Ai.HFApiKey,
		Timeout:  cfg.Ai.Timeout,
	}
}

// newReplayGuard prefers Redis so every instance shares delivery ids.
func newReplayGuard(redisURL string, c *Container) contract.ReplayGuard {
	if redisURL == "" {
		return memory.NewReplayGuard()
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: redisURL,
		}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Webhook replay guard is process-local", err)
		_ = rdb.Close()
		return memory.NewReplayGuard()
	}

	c.closers = append(c.closers, func() { _ = rdb.Close() })
	return cache.NewRedisReplayGuard(rdb)
}
