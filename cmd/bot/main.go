package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"salyqbot/internal/analytics"
	"salyqbot/internal/config"
	"salyqbot/internal/conversation"
	"salyqbot/internal/history"
	"salyqbot/internal/httpapi"
	"salyqbot/internal/llm"
	"salyqbot/internal/logging"
	"salyqbot/internal/prompt"
	"salyqbot/internal/scheduler"
	"salyqbot/internal/storage"
	"salyqbot/internal/telegram"
)

func main() {
	envErr := godotenv.Load(".env")

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.Init(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if envErr != nil {
		log.Debug(".env file not loaded", zap.Error(envErr))
	}

	if err := run(cfg); err != nil {
		log.Fatal("salyqbot stopped", zap.Error(err))
	}
	log.Info("salyqbot stopped")
}

func run(cfg *config.Config) error {
	log := logging.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close history store", zap.Error(err))
		}
	}()
	log.Info("history store ready", zap.String("backend", string(cfg.HistoryBackend)))

	persona, err := prompt.LoadPersona(cfg.PersonaPath)
	if err != nil {
		return err
	}

	client, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider))
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	var rec storage.Recorder
	if cfg.LogFilePath != "" {
		fr, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			log.Warn("interaction log disabled", zap.Error(err))
		} else {
			rec = fr
			defer func() {
				if err := fr.Close(); err != nil {
					log.Warn("failed to close interaction log", zap.Error(err))
				}
			}()
		}
	}

	conv := conversation.New(store, client, prompt.New(persona), rec)

	report := func(ctx context.Context) (string, error) {
		if rec == nil {
			return "", errors.New("interaction log is disabled")
		}
		return analytics.DailyReport(rec, time.Now().UTC())
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		g.Go(func() error {
			return httpapi.Serve(gctx, cfg.HTTPAddr, httpapi.NewRouter(conv, cfg.APIToken))
		})
	}

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, conv, cfg.AdminUserID, cfg.MaxConcurrentMessages)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		bot.SetReportFunction(report)

		if cfg.AdminUserID != 0 && rec != nil {
			sched := scheduler.New(cfg.ReportSchedule)
			sched.SetReportFunction(bot.SendReport)
			if err := sched.Start(); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}
			defer sched.Stop()
		}

		g.Go(func() error {
			return bot.Start(gctx)
		})
	}

	log.Info("salyqbot started",
		zap.String("provider", string(cfg.LLMProvider)),
		zap.Bool("telegram", cfg.TelegramBotToken != ""),
		zap.String("http_addr", cfg.HTTPAddr),
	)
	return g.Wait()
}
