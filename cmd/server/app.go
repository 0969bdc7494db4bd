package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kiranshivaraju/repograder/internal/ai"
	"github.com/kiranshivaraju/repograder/internal/cache"
	"github.com/kiranshivaraju/repograder/internal/config"
	"github.com/kiranshivaraju/repograder/internal/prompt"
	"github.com/kiranshivaraju/repograder/internal/queue"
	"github.com/kiranshivaraju/repograder/internal/repo"
	"github.com/kiranshivaraju/repograder/internal/sanitize"
	"github.com/kiranshivaraju/repograder/internal/store"
	"github.com/kiranshivaraju/repograder/internal/worker"
)

// app is the fully wired pipeline shared by serve and evaluate.
type app struct {
	cfg      *config.Config
	store    *store.PostgresStore
	cache    *cache.RedisCache
	queue    *queue.Queue
	analyzer *repo.Analyzer
	worker   *worker.Worker

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, migrate bool) (_ *app, err error) {
	a := &app{cfg: cfg, queue: queue.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	slog.Info("database connected")

	if migrate {
		if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")
	}
	a.store = store.NewPostgresStore(pool)

	a.cache, err = cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.cache.Close() })
	if err := a.cache.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	provider, err := ai.NewProvider(ctx, cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("create AI provider: %w", err)
	}
	if c, ok := provider.(io.Closer); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}
	slog.Info("AI provider initialized", "provider", provider.Name(), "model", provider.Model())

	a.analyzer, err = newAnalyzer(cfg.GitHub, a.cache)
	if err != nil {
		return nil, err
	}

	var opts []ai.Option
	if cfg.AI.TranscriptDir != "" {
		opts = append(opts, ai.WithTranscriptDir(cfg.AI.TranscriptDir))
	}
	client := ai.NewClient(provider,
		prompt.NewBuilder(cfg.Worker.PromptMaxFiles, cfg.Worker.PromptMaxFileChars),
		cfg.AI.InferenceTimeout, opts...)

	a.worker = worker.New(worker.Config{
		PollInterval: cfg.Worker.PollInterval,
		MaxFiles:     cfg.Worker.MaxFiles,
		StatusTTL:    cfg.Worker.StatusTTL,
	}, worker.Deps{
		Queue:     a.queue,
		Store:     a.store,
		Cache:     a.cache,
		Analyzer:  a.analyzer,
		Sanitizer: sanitize.New(cfg.Worker.MaxFileChars),
		Evaluator: client,
	})
	return a, nil
}

func newAnalyzer(gh config.GitHubConfig, c cache.Cache) (*repo.Analyzer, error) {
	an, err := repo.New(repo.Config{
		CloneRoot:    gh.CloneDir,
		CloneDepth:   gh.CloneDepth,
		CloneTimeout: gh.CloneTimeout,
		APITimeout:   gh.Timeout,
		Token:        gh.Token,
		APIBaseURL:   gh.APIURL,
	}, c)
	if err != nil {
		return nil, fmt.Errorf("create repository analyzer: %w", err)
	}
	return an, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
