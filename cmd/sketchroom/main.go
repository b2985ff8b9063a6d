package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/totegamma/sketchroom"
	"github.com/totegamma/sketchroom/internal/application"
	"github.com/totegamma/sketchroom/internal/config"
	"github.com/totegamma/sketchroom/internal/infra/database"
	"github.com/totegamma/sketchroom/internal/infra/repository"
	"github.com/totegamma/sketchroom/internal/present/realtime"
	"github.com/totegamma/sketchroom/internal/present/rest"
	restmw "github.com/totegamma/sketchroom/internal/present/rest/middleware"
	"github.com/totegamma/sketchroom/internal/service"
	"github.com/totegamma/sketchroom/internal/usecase"
)

const serviceName = "sketchroom"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(conf.Server.LogLevel),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		cleanup, err := setupTraceProvider(ctx, conf.Server.TraceEndpoint, serviceName)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer cleanup()
	}

	var snapshotRepo usecase.SnapshotRepository = repository.NewMemorySnapshotRepository()
	if conf.Server.MemcachedAddr != "" {
		mc := database.NewMemcached(conf.Server.MemcachedAddr)
		snapshotRepo = repository.NewMemcacheSnapshotRepository(mc, conf.Server.CanvasName)
	}
	// the stroke log is memory-only, so a raster left over from a previous
	// process would not match it
	err = snapshotRepo.Clear(ctx)
	if err != nil {
		slog.Warn("failed to clear stale snapshot", slog.String("error", err.Error()))
	}

	limits := sketchroom.Limits{
		MaxSegments:      conf.Canvas.MaxSegments,
		MaxSnapshotBytes: conf.Canvas.MaxSnapshotBytes,
	}
	hub := realtime.NewHub(limits)

	var opts []usecase.SessionOption
	var signals *service.SignalService
	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		defer rdb.Close()
		err = database.PingRedis(ctx, rdb)
		if err != nil {
			slog.Error("failed to connect redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		signals = service.NewSignalService(rdb, conf.Server.CanvasName)
		opts = append(opts, usecase.WithPublisher(signals))
	}

	session := usecase.NewSession(conf.Canvas, snapshotRepo, hub, opts...)

	if signals != nil {
		go func() {
			err := signals.Listen(ctx, service.ControlHandler(session))
			if err != nil {
				slog.Error("control listener stopped", slog.String("error", err.Error()))
			}
		}()
	}

	scheduler, err := application.NewScheduler(session, conf.Canvas)
	if err != nil {
		slog.Error("failed to create scheduler", slog.String("error", err.Error()))
		os.Exit(1)
	}
	go scheduler.Run(ctx)

	handler := rest.NewHandler(session, hub, restmw.NewAdminMiddleware(conf.Server.AdminToken))

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(serviceName, otelecho.WithSkipper(func(c echo.Context) bool {
			return c.Path() == "/healthz" || c.Path() == "/ws"
		})))
	}
	handler.RegisterRoutes(e)

	go func() {
		slog.Info(
			"server started",
			slog.String("addr", conf.Server.ListenAddr),
			slog.String("canvas", conf.Server.CanvasName),
		)
		err := e.Start(conf.Server.ListenAddr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop()
	hub.Close()
	err = e.Shutdown(shutdownCtx)
	if err != nil {
		slog.Error("failed to shut down server", slog.String("error", err.Error()))
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupTraceProvider(ctx context.Context, endpoint string, serviceName string) (func(), error) {
	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down tracer provider", slog.String("error", err.Error()))
		}
	}
	return cleanup, nil
}
