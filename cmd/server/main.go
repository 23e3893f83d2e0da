package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardspace/cardspace/internal/api"
	"github.com/cardspace/cardspace/internal/auth"
	"github.com/cardspace/cardspace/internal/config"
	"github.com/cardspace/cardspace/internal/core"
	"github.com/cardspace/cardspace/internal/store"
)

func main() {
	// Command line flag for minting a bearer token
	issueToken := flag.String("issue-token", "", "Print a bearer token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of a token minted with -issue-token")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logging
	if err := setupLogging(cfg); err != nil {
		slog.Error("Failed to configure logging", "error", err)
		os.Exit(1)
	}

	var issuer *auth.Issuer
	if cfg.AuthEnabled() {
		issuer = auth.NewIssuer(cfg.JWTSecret)
	}

	if *issueToken != "" {
		if issuer == nil {
			slog.Error("JWT_SECRET must be set to issue tokens")
			os.Exit(1)
		}
		token, err := issuer.Generate(*issueToken, *tokenTTL)
		if err != nil {
			slog.Error("Failed to issue token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	if err := run(cfg, issuer); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, issuer *auth.Issuer) error {
	ctx := context.Background()

	// Initialize database store
	dbStore, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	// Initialize LLM backend
	completer, closeLLM, err := newCompleter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM backend: %w", err)
	}
	defer closeLLM()

	llmService := core.NewLLMService(completer, cfg.LLMTimeout)
	chatService := core.NewChatService(dbStore, llmService)
	cardService := core.NewCardService(dbStore, llmService)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, cardService)
	router := api.NewRouter(apiHandler, issuer)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 30*time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", serverAddr, "llm_provider", cfg.LLMProvider, "auth", issuer != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-serveErr:
		if ok {
			return err
		}
		return nil
	case sig := <-quit:
		slog.Info("Shutting down server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server exiting gracefully")
	return nil
}

func setupLogging(cfg *config.Config) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", cfg.LogFormat)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// newCompleter builds the model backend selected by LLM_PROVIDER. The
// returned func releases its resources.
func newCompleter(ctx context.Context, cfg *config.Config) (core.Completer, func(), error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		gemini, err := core.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return gemini, gemini.Close, nil
	case config.ProviderOpenAI:
		openai, err := core.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, nil, err
		}
		return openai, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}
