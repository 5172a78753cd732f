package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/faceanon/engine/internal/api"
	"github.com/faceanon/engine/internal/api/ws"
	"github.com/faceanon/engine/internal/config"
	"github.com/faceanon/engine/internal/jobs"
	"github.com/faceanon/engine/internal/observability"
	"github.com/faceanon/engine/internal/queue"
	"github.com/faceanon/engine/internal/storage"
	"github.com/faceanon/engine/pkg/dto"
)

// jobserver runs the full queued service: the HTTP API that accepts jobs
// and the worker loop that executes them. Splitting these into separate
// processes (as the teacher does with its api/worker pair) is a
// deployment choice, not an architectural one, since a job run and an API
// request never contend for the same goroutine; cmd/anonymize covers the
// case where neither the API nor the queue is wanted at all.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting faceanon job server", "port", cfg.Server.Port, "cpu_cores", runtime.NumCPU())

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventConsumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer eventConsumer.Close()

	err = eventConsumer.ConsumeEvents(ctx, "jobserver-events", func(_ context.Context, msg jetstream.Msg) error {
		var evt dto.JobEvent
		if err := json.Unmarshal(msg.Data(), &evt); err != nil {
			slog.Error("unmarshal job event", "error", err)
			return nil
		}
		hub.BroadcastEvent(&evt)
		return nil
	})
	if err != nil {
		slog.Warn("start event consumer", "error", err)
	}

	runner := jobs.NewRunner(cfg.Pipeline, db, minioStore, producer)

	jobConsumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create job consumer", "error", err)
		os.Exit(1)
	}
	defer jobConsumer.Close()

	err = jobConsumer.ConsumeJobs(ctx, "jobserver-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var j jobs.Job
		if err := json.Unmarshal(msg.Data(), &j); err != nil {
			slog.Error("unmarshal job", "error", err)
			return nil // don't retry on unmarshal errors
		}
		if err := runner.Run(ctx, &j); err != nil {
			return fmt.Errorf("run job %s: %w", j.ID, err)
		}
		return nil
	}, cfg.Pipeline.WorkerCount)
	if err != nil {
		slog.Error("start job consumer", "error", err)
		os.Exit(1)
	}

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Hub:      hub,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("job server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down job server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("job server stopped")
}

func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
