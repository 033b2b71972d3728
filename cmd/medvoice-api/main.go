package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/medvoice-ai/medvoice/internal/dotenv"
	"github.com/medvoice-ai/medvoice/pkg/core/providers/gemini"
	"github.com/medvoice-ai/medvoice/pkg/core/providers/openai"
	"github.com/medvoice-ai/medvoice/pkg/gateway/config"
	gatewayserver "github.com/medvoice-ai/medvoice/pkg/gateway/server"
)

type apiDeps struct {
	loadConfig     func() (config.Config, error)
	buildProviders func(ctx context.Context, cfg config.Config) (gatewayserver.Dependencies, error)
	newServer      func(config.Config, *slog.Logger, gatewayserver.Dependencies) *gatewayserver.Server
	signalNotify   func(chan<- os.Signal, ...os.Signal)
	signalStop     func(chan<- os.Signal)
}

func defaultAPIDeps() apiDeps {
	return apiDeps{
		loadConfig:     config.LoadFromEnv,
		buildProviders: buildProviderDependencies,
		newServer:      gatewayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// buildProviderDependencies wires the configured LLM provider into the
// three conversation collaborator slots. The voice bridge stays nil: the
// gateway provisions rooms and supervises sessions, while the in-room
// audio bot is a separate deployment.
func buildProviderDependencies(ctx context.Context, cfg config.Config) (gatewayserver.Dependencies, error) {
	switch cfg.LLMProvider {
	case config.LLMProviderGemini:
		p, err := gemini.New(ctx, gemini.Config{
			APIKey:            cfg.GeminiAPIKey,
			Model:             cfg.GeminiModel,
			BatchModel:        cfg.GeminiBatchModel,
			ResponseMaxTokens: cfg.ResponseMaxTokens,
		})
		if err != nil {
			return gatewayserver.Dependencies{}, fmt.Errorf("gemini provider: %w", err)
		}
		return gatewayserver.Dependencies{Extractor: p, Responder: p, RecordExtractor: p}, nil
	case config.LLMProviderOpenAI:
		p, err := openai.New(openai.Config{
			APIKey:            cfg.OpenAIAPIKey,
			Model:             cfg.OpenAIModel,
			BatchModel:        cfg.OpenAIBatchModel,
			ResponseMaxTokens: cfg.ResponseMaxTokens,
		})
		if err != nil {
			return gatewayserver.Dependencies{}, fmt.Errorf("openai provider: %w", err)
		}
		return gatewayserver.Dependencies{Extractor: p, Responder: p, RecordExtractor: p}, nil
	default:
		return gatewayserver.Dependencies{}, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runAPI(ctx context.Context, logger *slog.Logger, deps apiDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.buildProviders == nil {
		return errors.New("missing buildProviders dependency")
	}
	if deps.newServer == nil {
		return errors.New("missing newServer dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	serverDeps, err := deps.buildProviders(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build conversation backend: %w", err)
	}

	gw := deps.newServer(cfg, logger, serverDeps)
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"llm_provider", cfg.LLMProvider,
		"voice_configured", cfg.DailyAPIKey != "",
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.SetDraining()
	gw.WarnLiveSessionsDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	gw.StopVoiceTasks()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer drainCancel()
	if !gw.WaitVoiceTasks(drainCtx) {
		logger.Warn("voice tasks still running at shutdown deadline")
	}
	if !gw.WaitLiveSessions(drainCtx) {
		gw.CancelLiveSessions()
	}

	if removed := gw.CleanupSessions(); removed > 0 {
		logger.Info("sessions discarded on shutdown", "count", removed)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps apiDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "medvoice-api: %v\n", err)
		return 1
	}

	if err := runAPI(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "medvoice-api: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultAPIDeps()))
}
