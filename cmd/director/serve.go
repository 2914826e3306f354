package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"

	"github.com/KirkDiggler/pcg-director/internal/errors"
	"github.com/KirkDiggler/pcg-director/internal/handlers/httpapi"
	"github.com/KirkDiggler/pcg-director/internal/redis"
	"github.com/KirkDiggler/pcg-director/internal/repositories/history"
	"github.com/KirkDiggler/pcg-director/internal/services/director"
)

// HealthServiceName is the gRPC health entry for the analysis API
const HealthServiceName = "pcg.director.Analysis"

const envAPIKey = "OPENAI_API_KEY"

type serveOptions struct {
	httpPort     int
	grpcPort     int
	redisAddr    string
	llmBaseURL   string
	llmModel     string
	llmTimeout   time.Duration
	historyMax   int
	historyTTL   time.Duration
	shutdownWait time.Duration
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis server",
	Long: `Start the HTTP analysis API and a gRPC health endpoint. When
OPENAI_API_KEY is set answers come from the model, otherwise from the
built-in pacing rules.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.IntVar(&serveOpts.httpPort, "port", 3000, "HTTP server port")
	f.IntVar(&serveOpts.grpcPort, "grpc-port", 50051, "gRPC health server port")
	f.StringVar(&serveOpts.redisAddr, "redis-addr", "", "Redis address for history (in-memory when empty)")
	f.StringVar(&serveOpts.llmBaseURL, "llm-base-url", "", "OpenAI compatible API base URL")
	f.StringVar(&serveOpts.llmModel, "llm-model", director.DefaultLLMModel, "Chat completion model")
	f.DurationVar(&serveOpts.llmTimeout, "llm-timeout", director.DefaultLLMTimeout, "Completion timeout")
	f.IntVar(&serveOpts.historyMax, "history-max", history.DefaultMaxEntries, "Records kept per player")
	f.DurationVar(&serveOpts.historyTTL, "history-ttl", history.DefaultTTL, "History lifetime after the last record")
	f.DurationVar(&serveOpts.shutdownWait, "shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal, gracefully stopping...")
		cancel()
	}()

	d, err := buildDirector(serveOpts, os.Getenv(envAPIKey))
	if err != nil {
		return fmt.Errorf("failed to create director: %w", err)
	}

	repo, cleanup, err := buildHistory(ctx, serveOpts)
	if err != nil {
		return fmt.Errorf("failed to create history repository: %w", err)
	}
	defer cleanup()

	handler, err := httpapi.NewHandler(&httpapi.Config{
		Director: d,
		History:  repo,
	})
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", serveOpts.httpPort),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", serveOpts.grpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcSrv, healthServer := newGRPCServer()

	errChan := make(chan error, 2)
	go func() {
		log.Printf("HTTP server starting on port %d...", serveOpts.httpPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("failed to serve http: %w", err)
		}
	}()
	go func() {
		log.Printf("gRPC health server starting on port %d...", serveOpts.grpcPort)
		if err := grpcSrv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("failed to serve grpc: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errChan:
	}

	log.Println("Shutting down servers...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serveOpts.shutdownWait)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-shutdownCtx.Done():
		log.Println("Graceful shutdown timeout exceeded, forcing stop")
		grpcSrv.Stop()
	case <-stopped:
		log.Println("Servers stopped gracefully")
	}

	return serveErr
}

// buildDirector picks the model backed director when an API key is present
func buildDirector(opts serveOptions, apiKey string) (director.Director, error) {
	if apiKey == "" {
		slog.Info("No API key set, using rule director")
		d, err := director.NewRuleDirector(&director.RuleConfig{})
		if err != nil {
			return nil, err
		}
		return d, nil
	}

	slog.Info("Using LLM director", "model", opts.llmModel)
	d, err := director.NewLLMDirector(&director.LLMConfig{
		APIKey:  apiKey,
		BaseURL: opts.llmBaseURL,
		Model:   opts.llmModel,
		Timeout: opts.llmTimeout,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// buildHistory returns a Redis repository when an address is configured
func buildHistory(ctx context.Context, opts serveOptions) (history.Repository, func(), error) {
	historyOpts := history.Options{
		MaxEntries: opts.historyMax,
		TTL:        opts.historyTTL,
	}

	if opts.redisAddr == "" {
		slog.Info("No Redis address set, keeping history in memory")
		repo, err := history.NewInMemory(historyOpts)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	}

	client, err := redis.NewClient(opts.redisAddr, nil)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}

	if err := redis.Ping(ctx, client, 5*time.Second); err != nil {
		cleanup()
		return nil, nil, err
	}

	repo, err := history.NewRedisRepository(&history.Config{Client: client, Options: historyOpts})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	slog.Info("Storing history in Redis", "addr", opts.redisAddr)
	return repo, cleanup, nil
}

func newGRPCServer() (*grpc.Server, *health.Server) {
	recoveryOpt := grpc_recovery.WithRecoveryHandlerContext(func(ctx context.Context, p any) error {
		slog.ErrorContext(ctx, "Recovered from panic", "panic", p)
		return errors.ToGRPCError(errors.Internalf("panic: %v", p))
	})

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_logging.UnaryServerInterceptor(grpc_logging.LoggerFunc(logFunc)),
			grpc_recovery.UnaryServerInterceptor(recoveryOpt),
		),
		grpc.ChainStreamInterceptor(
			grpc_logging.StreamServerInterceptor(grpc_logging.LoggerFunc(logFunc)),
			grpc_recovery.StreamServerInterceptor(recoveryOpt),
		),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthServer)

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return srv, healthServer
}

func logFunc(ctx context.Context, level grpc_logging.Level, msg string, fields ...any) {
	slog.Log(ctx, slog.Level(level), msg, fields...)
}
