package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/absmach/fedmodel"
	"github.com/absmach/fedmodel/coordinator"
	"github.com/absmach/fedmodel/coordinator/api"
	"github.com/absmach/fedmodel/coordinator/middleware"
	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/cron"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/fedmodel/pkg/mqtt"
	"github.com/absmach/fedmodel/pkg/storage"
	"github.com/absmach/fedmodel/pkg/tensor"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "fl-coordinator"
	defHTTPPort   = "7070"
	envPrefixHTTP = "FL_HTTP_"
	pathEnv       = ".env"
	drainTimeout  = 30 * time.Second
)

type envConfig struct {
	LogLevel    string  `env:"FL_LOG_LEVEL"   envDefault:"info"`
	InstanceID  string  `env:"FL_INSTANCE_ID"`
	ConfigFile  string  `env:"FL_CONFIG_FILE"`
	OTELURL     url.URL `env:"FL_OTEL_URL"`
	TraceRatio  float64 `env:"FL_TRACE_RATIO" envDefault:"0"`
	Coordinator coordinator.Config
	Storage     storage.Config
	Artifacts   fedmodel.ArtifactsConfig
	MQTT        fedmodel.MQTTConfig
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}
	if cfg.ConfigFile != "" {
		if err := applyFile(&cfg); err != nil {
			log.Fatalf("failed to load configuration file: %s", err.Error())
		}
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	repos, err := storage.NewRepositories(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("type", cfg.Storage.Type), slog.String("error", err.Error()))

		return
	}
	if repos.Closer != nil {
		defer repos.Closer.Close()
	}

	store, err := newArtifactStore(cfg.Artifacts)
	if err != nil {
		logger.Error("failed to initialize artifact store", slog.String("error", err.Error()))

		return
	}

	mode, err := artifact.ParseMergeMode(cfg.Artifacts.MergeMode)
	if err != nil {
		logger.Error("failed to parse merge mode", slog.String("error", err.Error()))

		return
	}

	publisher := artifact.NewPublisher(store, logger)
	recovered, err := publisher.Recover(ctx)
	if err != nil {
		logger.Error("failed to recover published model", slog.String("error", err.Error()))

		return
	}
	if recovered {
		m, _ := publisher.Manifest()
		logger.Info("Recovered published model", slog.Uint64("version", m.Version), slog.String("content_hash", m.ContentHash))
	}

	var notifier coordinator.Notifier
	var pubsub mqtt.PubSub
	if cfg.MQTT.Address != "" {
		pubsub, err = mqtt.NewPubSub(
			cfg.MQTT.Address,
			cfg.MQTT.QoS,
			svcName+"-"+cfg.InstanceID,
			cfg.MQTT.ClientID,
			cfg.MQTT.ClientKey,
			cfg.MQTT.DomainID,
			cfg.MQTT.ChannelID,
			cfg.MQTT.Timeout,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			_ = pubsub.Disconnect(context.Background())
		}()
		notifier = mqtt.NewNotifier(pubsub, cfg.MQTT.DomainID, cfg.MQTT.ChannelID)
	}

	svc := coordinator.NewService(
		cfg.Coordinator,
		fl.NewFedAvg(),
		artifact.NewConverter(mode),
		publisher,
		repos,
		notifier,
		logger,
	)

	if cfg.Artifacts.SeedFile != "" && !recovered {
		if err := seed(ctx, svc, cfg.Artifacts.SeedFile); err != nil {
			logger.Error("failed to seed initial model", slog.String("path", cfg.Artifacts.SeedFile), slog.String("error", err.Error()))

			return
		}
	}

	var sched *cron.Schedule
	if cfg.Coordinator.RoundSchedule != "" {
		sched, err = cron.Parse(cfg.Coordinator.RoundSchedule, cfg.Coordinator.ScheduleTimezone)
		if err != nil {
			logger.Error("failed to parse round schedule", slog.String("error", err.Error()))

			return
		}
	}

	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	if sched != nil {
		g.Go(func() error {
			return coordinator.RunScheduled(ctx, svc, sched, logger)
		})
	}

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := svc.Wait(drainCtx); err != nil {
		logger.Warn("aggregation round still running at shutdown", slog.String("error", err.Error()))
	}
}

// applyFile replaces each configuration section the file defines.
func applyFile(cfg *envConfig) error {
	file, err := fedmodel.LoadConfig(cfg.ConfigFile)
	if err != nil {
		return err
	}
	if file.Has("coordinator") {
		cfg.Coordinator = file.Coordinator
	}
	if file.Has("storage") {
		cfg.Storage = file.Storage
	}
	if file.Has("artifacts") {
		cfg.Artifacts = file.Artifacts
	}
	if file.Has("mqtt") {
		cfg.MQTT = file.MQTT
	}

	return nil
}

func newArtifactStore(cfg fedmodel.ArtifactsConfig) (artifact.Store, error) {
	if cfg.Dir == "" {
		return artifact.NewMemoryStore(cfg.Retain), nil
	}

	return artifact.NewFileStore(cfg.Dir, cfg.Retain)
}

func seed(ctx context.Context, svc coordinator.Service, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var w tensor.Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	if _, err := svc.Seed(ctx, w); err != nil && !errors.Is(err, artifact.ErrModelExists) {
		return err
	}

	return nil
}
