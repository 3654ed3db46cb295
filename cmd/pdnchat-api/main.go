package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdnchat/pdnchat/internal/api"
	"github.com/pdnchat/pdnchat/internal/chat"
	"github.com/pdnchat/pdnchat/internal/compose"
	"github.com/pdnchat/pdnchat/internal/config"
	"github.com/pdnchat/pdnchat/internal/dataset"
	"github.com/pdnchat/pdnchat/internal/llm"
	"github.com/pdnchat/pdnchat/internal/nl2sql"
	"github.com/pdnchat/pdnchat/internal/observability"
	"github.com/pdnchat/pdnchat/internal/query"
	duckdbengine "github.com/pdnchat/pdnchat/internal/query/duckdb"
	s3store "github.com/pdnchat/pdnchat/internal/storage/s3"
)

var errReasoningUnavailable = errors.New("reasoning service is not configured")

func main() {
	cfg, err := config.LoadFromEnv("pdnchat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	datasetPath := cfg.Dataset.Path
	var (
		fetcher     *dataset.Fetcher
		objectStore *s3store.Store
	)
	if cfg.Dataset.ObjectKey != "" {
		var err error
		objectStore, err = s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			return fmt.Errorf("initialize object store: %w", err)
		}
		fetcher, err = dataset.NewFetcher(objectStore, cfg.Dataset.ObjectKey, cfg.Dataset.CacheDir)
		if err != nil {
			return err
		}
		if _, err := fetcher.Sync(ctx); err != nil {
			return fmt.Errorf("fetch dataset %s: %w", cfg.Dataset.ObjectKey, err)
		}
		datasetPath = fetcher.Path()
	}

	executor, err := newExecutor(cfg, datasetPath, logger)
	if err != nil {
		return err
	}

	completer, err := newCompleter(cfg, logger)
	if err != nil {
		return err
	}
	synthesizer, err := nl2sql.NewSynthesizer(nl2sql.Config{
		Completer:    completer,
		ContextTurns: cfg.History.ContextTurns,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("initialize synthesizer: %w", err)
	}
	language, _ := compose.ParseLanguage(cfg.Chat.DefaultLanguage)
	composer, err := compose.NewComposer(compose.Config{
		Completer:       completer,
		DefaultLanguage: language,
		ContextTurns:    cfg.History.ContextTurns,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("initialize composer: %w", err)
	}

	store, closeStore, err := openHistory(ctx, cfg.History)
	if err != nil {
		return fmt.Errorf("open %s history: %w", cfg.History.Backend, err)
	}
	defer func() { _ = closeStore() }()

	service := &chat.Service{
		Synthesizer: synthesizer,
		Executor:    executor,
		Composer:    composer,
		History:     store,
		Config: chat.Config{
			MaxQuestionLength: cfg.Chat.MaxQuestionLength,
			Location:          cfg.Location(),
		},
		Logger: logger,
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:  logger,
		Chat:    service,
		History: store,
		Readiness: api.CombineReadinessChecks(
			api.CheckPinger("dataset", executor),
			api.CheckPinger("history", historyPinger(store)),
			objectStoreCheck(objectStore),
		),
		DependencyTimeout: 2 * time.Second,
		ReadyDetails:      datasetDetails(fetcher),
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("dataset", datasetPath),
			slog.String("locator", executor.Locator()),
			slog.String("history_backend", string(cfg.History.Backend)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if fetcher != nil {
		group.Go(func() error {
			return fetcher.Refresh(groupCtx, cfg.Dataset.RefreshInterval, logger)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// datasetDetails reports when the cached dataset was last confirmed current.
func datasetDetails(fetcher *dataset.Fetcher) func() map[string]any {
	if fetcher == nil {
		return nil
	}
	return func() map[string]any {
		synced := fetcher.LastSync()
		if synced.IsZero() {
			return map[string]any{"dataset_synced_at": nil}
		}
		return map[string]any{"dataset_synced_at": synced.UTC().Format(time.RFC3339)}
	}
}

func objectStoreCheck(store *s3store.Store) api.ReadinessCheck {
	if store == nil {
		return nil
	}
	return api.CheckPinger("object_store", store)
}

func newExecutor(cfg config.Config, datasetPath string, logger *slog.Logger) (*query.Executor, error) {
	absPath, err := filepath.Abs(datasetPath)
	if err != nil {
		return nil, fmt.Errorf("resolve dataset path: %w", err)
	}
	locator := cfg.Dataset.Locator
	if locator == "" {
		locator, err = dataset.Locator(absPath)
		if err != nil {
			return nil, err
		}
	}
	engine := duckdbengine.NewEngine(duckdbengine.Config{
		AllowedDirectories: []string{filepath.Dir(absPath)},
	})
	executor, err := query.NewExecutor(engine, query.ExecutorConfig{
		LogicalTable: dataset.LogicalTable,
		Locator:      locator,
		RowLimit:     cfg.Dataset.RowLimit,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize query executor: %w", err)
	}
	return executor, nil
}

// newCompleter returns the reasoning-service client. Without an API key the
// dev and test profiles run with a completer that always fails, so every turn
// takes the synthesis-failure path.
func newCompleter(cfg config.Config, logger *slog.Logger) (llm.Completer, error) {
	if cfg.AI.APIKey != "" {
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize reasoning client: %w", err)
		}
		return client, nil
	}
	if cfg.Profile == config.ProfileProd {
		return nil, fmt.Errorf("PDNCHAT_AI_API_KEY is required in the prod profile")
	}
	logger.Warn("PDNCHAT_AI_API_KEY is not set; questions will not be answered")
	return llm.CompleterFunc(func(context.Context, string, string) (string, error) {
		return "", errReasoningUnavailable
	}), nil
}
