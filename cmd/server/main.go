package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	transbank "github.com/yourorg/transbank-api"
	"github.com/yourorg/transbank-api/internal/adapter"
	"github.com/yourorg/transbank-api/internal/config"
	"github.com/yourorg/transbank-api/internal/monitor"
	"github.com/yourorg/transbank-api/internal/tokenstore"
)

func newServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...transbank.Option) (*server, error) {
	contracts, err := monitor.NewDefaultMonitor()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts = append([]transbank.Option{
		transbank.WithLogger(logger),
		transbank.WithMetrics(adapter.NewMetrics(registry)),
		transbank.WithHooks(contracts.Hooks()),
	}, opts...)
	tb, err := transbank.FromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}

	// Return and final URLs point back at this server unless configured.
	defaults := map[string]map[string]string{
		transbank.ServiceWebpay: {"returnUrl": "/webpay/return", "finalUrl": "/webpay/final"},
		transbank.ServiceOnepay: {"callbackUrl": "/onepay/return"},
	}
	for svc, urls := range defaults {
		for key, path := range urls {
			if tb.Default(svc, key, nil) == nil {
				if err := tb.SetDefault(svc, key, cfg.Server.BaseURL+path); err != nil {
					return nil, err
				}
			}
		}
	}

	var tokens tokenstore.Store = tokenstore.NewMemory()
	if cfg.Server.RedisAddr != "" {
		client, err := tokenstore.Dial(ctx, cfg.Server.RedisAddr)
		if err != nil {
			return nil, err
		}
		tokens = tokenstore.NewRedis(client, "")
	}

	return &server{tb: tb, tokens: tokens, tokenTTL: cfg.Server.TokenTTL, registry: registry, logger: logger}, nil
}

func main() {
	cfg, err := config.Load(os.Getenv("TRANSBANK_CONFIG"), ".env")
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	logger := log.Logger

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		logger.Fatal().Err(err).Msg("creating trace exporter")
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	s, err := newServer(context.Background(), cfg, logger, transbank.WithTracerProvider(tp))
	if err != nil {
		logger.Fatal().Err(err).Msg("initializing server")
	}

	logger.Info().Str("addr", cfg.Server.Addr).Str("environment", cfg.Environment.String()).Msg("starting server")
	if err := setupRouter(s).Run(cfg.Server.Addr); err != nil {
		logger.Fatal().Err(err).Msg("failed to run server")
	}
}
