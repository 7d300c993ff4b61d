package main

import (
	"context"
	"flag"
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

 ____        _
| __ )  ___ | |_
|  _ \ / _ \| __|
| |_) | (_) | |_
|____/ \___/ \__|

BMKG Weather Bot (Telegram polling)
`

func main() {
	withScheduler := flag.Bool("with-scheduler", false, "also run the daily article and satellite jobs")
	flag.Parse()

	fmt.Print(banner)
	fmt.Println(strings.Repeat("-", 60))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatalf("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := logging.New(cfg, "bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	logger.Info("configuration",
		"bot", cfg.BotName,
		"target_hour", cfg.TargetHour,
		"split", fmt.Sprintf("%d/%d/%d", cfg.WIBCities, cfg.WITACities, cfg.WITCities),
		"ai", a.AIStatus(),
		"broadcast_chat", cfg.TelegramChatID != "",
	)

	if *withScheduler {
		s, err := a.Scheduler()
		if err != nil {
			log.Fatalf("failed to create scheduler: %v", err)
		}
		s.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			s.Stop(stopCtx)
		}()
	}

	fmt.Println(strings.Repeat("-", 60))
	logger.Info("bot running, press Ctrl+C to stop")

	if err := a.Telegram.Run(ctx); err != nil {
		logger.Error("bot stopped", "error", err)
		return
	}
	logger.Info("shutdown complete")
}
