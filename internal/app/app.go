// Package app wires configuration, storage, ingestion, the digest pipeline,
// the scheduler, and the Telegram transport into one runnable unit.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"digestbot/internal/config"
	"digestbot/internal/conversation"
	"digestbot/internal/digest"
	"digestbot/internal/llm"
	"digestbot/internal/news"
	"digestbot/internal/scheduler"
	"digestbot/internal/storage"
	"digestbot/internal/transport/telegram"
	"digestbot/pkg/logx"
)

type App struct {
	cfgm  *config.Manager
	log   logx.Logger
	store storage.Store
	bot   *telegram.Bot
	sched *scheduler.Service

	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
	cfgCh       chan *config.Config
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logx.NewConsole(cfg.Logging.Level)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error { return c.Validate() })

	store, err := storage.Open(storage.Config{Path: cfg.Storage.Path, BusyTimeout: cfg.Storage.BusyTimeoutOrDefault()},
		log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	llmTimeout := cfg.LLM.TimeoutOrDefault()
	gen, err := llm.New(context.Background(), cfg.LLM)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bot, err := telegram.New(telegram.Config{
		Token:             cfg.Telegram.Token,
		PollTimeout:       cfg.Telegram.PollTimeoutOrDefault(),
		RatePerSec:        cfg.Telegram.RatePerSec,
		DefaultDigestTime: cfg.Digest.DefaultTime,
		Vocabulary:        cfg.News.Categories,
	}, store, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	selector := digest.NewSelector(store, cfg.Digest.PerCategoryCap)
	composer := digest.NewComposer(gen, llmTimeout, cfg.LLM.MaxTokens, *cfg.LLM.Temperature,
		log.With(logx.String("comp", "composer")))
	digests := digest.NewService(selector, composer, store, bot, cfg.Digest.HistoryWindow,
		log.With(logx.String("comp", "digest")))
	conv := conversation.New(store, gen, cfg.Digest.HistoryWindow, llmTimeout,
		log.With(logx.String("comp", "conversation")))
	bot.Attach(digests, conv)

	classifier := news.NewClassifier(cfg.News.Categories)
	pipeline := news.NewPipeline(store, classifier, cfg.News.MaxItemsPerSource,
		log.With(logx.String("comp", "ingest")))

	sched := scheduler.New(scheduler.Config{
		UpdateInterval: time.Duration(cfg.News.UpdateIntervalMinutes) * time.Minute,
		Workers:        cfg.Digest.Workers,
		Location:       time.Local,
		RefreshAtStart: true,
	}, store, digests, &refresher{cfgm: cfgm, pipeline: pipeline}, log.With(logx.String("comp", "scheduler")))

	return &App{cfgm: cfgm, log: log, store: store, bot: bot, sched: sched}, nil
}

func (a *App) Start(ctx context.Context) error {
	if err := a.bot.Start(ctx); err != nil {
		return err
	}
	if err := a.sched.Start(ctx); err != nil {
		_ = a.bot.Stop(ctx)
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	a.cfgCh = a.cfgm.Subscribe(1)
	a.watchWG.Add(2)
	go func() {
		defer a.watchWG.Done()
		if err := a.cfgm.Watch(watchCtx); err != nil {
			a.log.Warn("config watch ended", logx.Err(err))
		}
	}()
	go func() {
		defer a.watchWG.Done()
		for {
			select {
			case <-watchCtx.Done():
				return
			case cfg, ok := <-a.cfgCh:
				if !ok {
					return
				}
				// Log level applies immediately; source-list changes take
				// effect on the next refresh run. Everything else needs a
				// restart.
				logx.SetLevel(cfg.Logging.Level)
				a.log.Info("configuration updated",
					logx.Int("sources", len(cfg.News.Sources)),
					logx.String("level", cfg.Logging.Level))
			}
		}
	}()

	a.log.Info("digestbot started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
	}
	err := a.sched.Stop(ctx)
	if berr := a.bot.Stop(ctx); err == nil {
		err = berr
	}
	a.watchWG.Wait()
	if a.cfgCh != nil {
		a.cfgm.Unsubscribe(a.cfgCh)
	}
	if cerr := a.store.Close(); err == nil {
		err = cerr
	}
	a.log.Info("digestbot stopped")
	return err
}

// refresher adapts the ingestion pipeline for the scheduler, rebuilding
// sources from the live config so file edits apply on the next run.
type refresher struct {
	cfgm     *config.Manager
	pipeline *news.Pipeline
}

func (r *refresher) Refresh(ctx context.Context) (int, error) {
	cfg := r.cfgm.Get()
	sources := news.BuildSources(cfg.News.Sources, &http.Client{Timeout: 20 * time.Second})
	return r.pipeline.Run(ctx, sources)
}
