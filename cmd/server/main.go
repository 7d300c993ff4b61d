package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/app"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/config"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
)

const banner = `
 ____  __  __ _  ______
| __ )|  \/  | |/ / ___|
|  _ \| |\/| | ' / |  _
| |_) | |  | | . \ |_| |
|____/|_|  |_|_|\_\____|

 ____
/ ___|  ___ _ ____   _____ _ __
\___ \ / _ \ '__\ \ / / _ \ '__|
 ___) |  __/ |   \ V /  __/ |
|____/ \___|_|    \_/ \___|_|

BMKG Weather Bot (webhooks + dashboard)
`

func main() {
	fmt.Print(banner)
	fmt.Println(strings.Repeat("-", 60))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.RequireTransport(); err != nil {
		log.Fatalf("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := logging.New(cfg, "server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	logger.Info("configuration",
		"addr", cfg.Addr(),
		"webhook_url", cfg.WebhookURL,
		"telegram", cfg.HasTelegram(),
		"whatsapp", cfg.HasWhatsApp(),
		"ai", a.AIStatus(),
	)
	if cfg.HasTelegram() {
		logger.Info("set the Telegram webhook to " + cfg.WebhookURL + "/telegram")
	}
	if cfg.HasWhatsApp() {
		logger.Info("set the WhatsApp callback URL to " + cfg.WebhookURL + "/whatsapp")
	}

	s, err := a.Scheduler()
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	s.Start()
	logger.Info("scheduler started", "jobs", s.Jobs())

	fmt.Println(strings.Repeat("-", 60))

	if err := a.Server(ctx).ListenAndServe(ctx); err != nil {
		logger.Error("server stopped", "error", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Stop(stopCtx)
	a.Wait()
	logger.Info("shutdown complete")
}
