package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/database"
	"github.com/Ramsey-B/clover/internal/middleware"
	"github.com/Ramsey-B/clover/internal/startup"
	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/backfill"
	"github.com/Ramsey-B/clover/pkg/entitystore"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/propagate"
	"github.com/Ramsey-B/clover/pkg/refid"
	"github.com/Ramsey-B/clover/pkg/routes/agents"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/identifiers"
	"github.com/Ramsey-B/clover/pkg/routes/links"
)

const version = "0.1.0"

func main() {
	// Missing .env is fine outside local development.
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync() //nolint:errcheck

	log := zapadapter.NewZapEctoLogger(zapLogger, nil)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracing.SetTracer(otel.Tracer(cfg.AppName))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func newZapLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.PrettyLogs {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// dependency adapts a named start/stop pair to the startup orchestrator.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string                 { return d.name }
func (d *dependency) DependsOn() []string             { return d.dependsOn }
func (d *dependency) Start(ctx context.Context) error { return d.start(ctx) }
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func run(ctx context.Context, cfg config.Config, log ectologger.Logger) error {
	var (
		db          database.DB
		producer    *kafka.Producer
		graphClient *graph.Client
	)

	boot := startup.New(log, cfg.StartupMaxAttempts)

	boot.AddDependency(&dependency{
		name: "postgres",
		start: func(ctx context.Context) error {
			var err error
			db, err = database.Connect(ctx, database.ConnectionConfig{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, log)
			if err != nil {
				return err
			}

			migrations := database.NewMigrationService(log, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
			})
			return migrations.Migrate(db, cfg.DatabaseName)
		},
		stop: func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})

	if cfg.KafkaEnabled {
		boot.AddDependency(&dependency{
			name: "kafka",
			start: func(ctx context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, log)
				return nil
			},
			stop: func(ctx context.Context) error {
				if producer == nil {
					return nil
				}
				return producer.Close()
			},
		})
	}

	if cfg.GraphDBEnabled {
		boot.AddDependency(&dependency{
			name: "graph",
			start: func(ctx context.Context) error {
				var err error
				graphClient, err = graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, log)
				if err != nil {
					return err
				}
				return graphClient.VerifyConnectivity(ctx)
			},
			stop: func(ctx context.Context) error {
				if graphClient == nil {
					return nil
				}
				return graphClient.Close(ctx)
			},
		})
	}

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer boot.Stop(context.Background()) //nolint:errcheck

	store := entitystore.NewRepository(db, log)
	emitter := events.NewEmitter(producer, log)
	mirror := graph.NewLinkService(graphClient, log)

	allocator := refid.NewAllocator(store, log)
	assigner := backfill.NewAssigner(store, log, emitter, backfill.Config{
		BatchSize:  cfg.BackfillBatchSize,
		BatchDelay: cfg.BackfillBatchDelay,
	})
	propagator := propagate.NewPropagator(store, log, emitter, mirror)

	container, err := ectoinject.NewDIContainer(ectocontainer.DIContainerConfig{ID: cfg.AppName})
	if err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*refid.Allocator](container, allocator); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*backfill.Assigner](container, assigner); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*propagate.Propagator](container, propagator); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(log)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(log))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqCtx, err := ectoinject.SetActiveContainer(c.Request().Context(), container.GetContainerID())
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(reqCtx))
			return next(c)
		}
	})

	checker := health.NewChecker(db, graphClient, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")

	var backfillGuards []echo.MiddlewareFunc
	if cfg.BackfillAdminOnly {
		backfillGuards = append(backfillGuards, middleware.RequireRole(middleware.RoleAdmin))
	}
	identifiers.Register(api.Group("/identifiers"), backfillGuards...)
	links.Register(api.Group("/links"))
	agents.Register(api.Group("/agents"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Infof("%s listening on :%d", cfg.AppName, cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	checker.SetReady(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	checker.SetReady(false)
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
