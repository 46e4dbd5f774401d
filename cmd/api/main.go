package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/Ramsey-B/bramble/config"
	"github.com/Ramsey-B/bramble/internal/repositories/doublerecord"
	"github.com/Ramsey-B/bramble/pkg/actions"
	"github.com/Ramsey-B/bramble/pkg/database"
	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/extensions"
	"github.com/Ramsey-B/bramble/pkg/holdings"
	"github.com/Ramsey-B/bramble/pkg/kafka"
	"github.com/Ramsey-B/bramble/pkg/middleware"
	"github.com/Ramsey-B/bramble/pkg/processor"
	"github.com/Ramsey-B/bramble/pkg/rawrepo"
	"github.com/Ramsey-B/bramble/pkg/redis"
	doublerecordroutes "github.com/Ramsey-B/bramble/pkg/routes/doublerecord"
	"github.com/Ramsey-B/bramble/pkg/routes/health"
	recordroutes "github.com/Ramsey-B/bramble/pkg/routes/record"
	"github.com/Ramsey-B/bramble/pkg/rules"
	"github.com/Ramsey-B/bramble/pkg/startup"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/Ramsey-B/bramble/pkg/update"
	"github.com/Ramsey-B/bramble/pkg/vip"
)

// version is stamped at build time.
var version = "dev"

type bootDependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *bootDependency) GetName() string { return d.name }
func (d *bootDependency) DependsOn() []string { return d.dependsOn }
func (d *bootDependency) Start(ctx context.Context) error { return d.start(ctx) }

func (d *bootDependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName: cfg.AppName,
		Endpoint:    cfg.TracingEndpoint,
		Protocol:    cfg.TracingProtocol,
		Insecure:    cfg.TracingInsecure,
	})
	if err != nil {
		logger.WithError(err).Error("failed to initialize tracing")
		os.Exit(1)
	}

	var (
		db          *sqlx.DB
		graphClient *rawrepo.Client
		redisClient *redis.Client
		consumer    *kafka.Consumer
		producer    *kafka.Producer
		checker     *health.Checker
		e           *echo.Echo
		updater     *update.Updater
	)

	boot := startup.New(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&bootDependency{
		name: "postgres",
		start: func(ctx context.Context) error {
			db, err = database.Connect(ctx, database.Config{
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				Name:            cfg.DatabaseName,
				Username:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
			if err != nil {
				return err
			}
			return database.NewMigrationService(cfg.DatabaseMigrationFolderPath, logger).
				Migrate(cfg.DatabaseName, driver)
		},
		stop: func(context.Context) error { return db.Close() },
	})

	boot.AddDependency(&bootDependency{
		name: "graph",
		start: func(ctx context.Context) error {
			graphClient, err = rawrepo.NewClient(rawrepo.Config{
				Host:     cfg.GraphDBHost,
				Port:     cfg.GraphDBPort,
				Username: cfg.GraphDBUser,
				Password: cfg.GraphDBPassword,
			}, logger)
			if err != nil {
				return err
			}
			return graphClient.VerifyConnectivity(ctx)
		},
		stop: func(ctx context.Context) error { return graphClient.Close(ctx) },
	})

	boot.AddDependency(&bootDependency{
		name: "redis",
		start: func(ctx context.Context) error {
			redisClient, err = redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			return err
		},
		stop: func(context.Context) error { return redisClient.Close() },
	})

	boot.AddDependency(&bootDependency{
		name:      "api",
		dependsOn: []string{"postgres", "graph", "redis"},
		start: func(ctx context.Context) error {
			producer = kafka.NewProducer(kafka.ProducerConfig{
				Brokers:     cfg.KafkaBrokers,
				Topic:       cfg.KafkaOutputTopic,
				Compression: cfg.KafkaCompression,
			}, logger)
			emitter := events.NewEmitter(producer, logger)
			store := rawrepo.NewStore(graphClient, emitter, logger)

			vipClient := vip.NewClient(vip.Config{
				BaseURL:  cfg.VIPBaseURL,
				CacheTTL: cfg.VIPCacheTTL,
			}, redisClient, logger)
			holdingsClient := holdings.NewClient(holdings.Config{BaseURL: cfg.HoldingsBaseURL}, logger)
			rulesClient := rules.NewClient(rules.Config{BaseURL: cfg.RulesBaseURL}, logger)
			keys := doublerecord.NewRepository(db, logger)
			extensionsHandler := extensions.NewHandler(vipClient, logger)

			updater = update.NewUpdater(store, vipClient, holdingsClient, rulesClient, keys, extensionsHandler, actions.Settings{
				ProviderDBC: cfg.ProviderDBC,
				ProviderFBS: cfg.ProviderFBS,
				ProviderPH:  cfg.ProviderPH,
				Priority:    cfg.DefaultPriority,
			}, logger)

			container, err := ectoinject.NewDIDefaultContainer()
			if err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[*update.Updater](container, updater); err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[*rawrepo.Store](container, store); err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[*rules.Client](container, rulesClient); err != nil {
				return err
			}

			e = echo.New()
			e.HideBanner = true
			e.HidePort = true
			e.HTTPErrorHandler = middleware.Error(logger)
			e.Use(otelecho.Middleware(cfg.AppName))
			e.Use(middleware.Context())
			e.Use(middleware.Logger(logger))

			e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

			checker = health.NewChecker(db, redisClient, graphClient, version)
			checker.RegisterRoutes(e)

			api := e.Group("/api/v1")
			recordroutes.Register(api.Group("/records"))
			doublerecordroutes.Register(api.Group("/doublerecord"))

			go func() {
				addr := fmt.Sprintf(":%d", cfg.Port)
				logger.Infof("listening on %s", addr)
				if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Error("http server stopped")
				}
			}()
			return nil
		},
		stop: func(ctx context.Context) error {
			if err := e.Shutdown(ctx); err != nil {
				return err
			}
			return producer.Close()
		},
	})

	if cfg.KafkaConsumerEnabled {
		boot.AddDependency(&bootDependency{
			name:      "consumer",
			dependsOn: []string{"api"},
			start: func(ctx context.Context) error {
				proc := processor.NewProcessor(updater, logger)
				consumer = kafka.NewConsumer(kafka.ConsumerConfig{
					Brokers:       cfg.KafkaBrokers,
					Topic:         cfg.KafkaInputTopic,
					ConsumerGroup: cfg.KafkaConsumerGroup,
				}, logger, proc.HandleMessage)
				return consumer.Start(ctx)
			},
			stop: func(context.Context) error { return consumer.Stop() },
		})
	}

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("startup failed")
		os.Exit(1)
	}
	checker.SetReady(true)
	logger.Infof("%s started", cfg.AppName)

	<-ctx.Done()
	logger.Info("shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown did not complete cleanly")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to flush tracing")
	}
}
