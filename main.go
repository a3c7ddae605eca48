package main

import (
	"context"
	"os/signal"
	"syscall"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"bumpbot/auth"
	"bumpbot/config"
	"bumpbot/reminder"
	"bumpbot/tgbot"
	"bumpbot/timer"
)

// getLogger creates the process-wide logger
func getLogger() (*zap.SugaredLogger, func() error) {
	logger, _ := zap.NewDevelopment()
	return logger.Sugar(), logger.Sync
}

func main() {
	logger, syncLogs := getLogger()
	defer syncLogs()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("failed loading configuration", "err", err)
	}

	if cfg.AccessCode == "" {
		logger.Warn("ACCESS_CODE is not set; nobody will pass the gate until it is configured")
	}

	b, err := tg.NewBotAPI(cfg.TgToken)
	if err != nil {
		logger.Fatalw("failed to initialize Telegram Bot", "err", err)
	}
	b.Debug = false

	logger.Infof("authorized on account %q", b.Self.UserName)

	clk := clock.New()
	sched := timer.NewScheduler(clk, logger)
	gate := auth.NewGate(cfg.AccessCode)

	tb := tgbot.New(b, gate, cfg.RemindAfter, logger)
	tb.Reminders = reminder.NewManager(sched, clk, tb.SendReminder, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sched.Run(ctx)

	uCfg := tg.NewUpdate(0)
	uCfg.Timeout = 60

	tb.Run(ctx, b.GetUpdatesChan(uCfg))
}
