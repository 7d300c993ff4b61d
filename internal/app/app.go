// Package app wires configuration, storage, clients and the command handler
// shared by the binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/commands"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/config"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/db"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/gemini"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/httpapi"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/pipeline"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/satellite"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/scheduler"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/selector"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/session"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/telegram"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/userlog"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/whatsapp"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
)

// App holds every long-lived component of a process.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Regions  *wilayah.Store
	Users    *userlog.Store
	Weather  *weather.Client
	Gemini   *gemini.Client // nil when AI is disabled
	Sessions *session.Manager
	Pipeline *pipeline.Pipeline
	Handler  *commands.Handler
	Telegram *telegram.Bot
	WhatsApp *whatsapp.Client

	dbs []*sql.DB
}

// New opens both databases, imports the region dump when needed and builds
// the clients. Telegram runs in disabled mode without a token.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if !db.Exists(cfg.DatabasePath) {
		logger.Info("region database not found, it will be created", "path", cfg.DatabasePath)
	}
	regionDB, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open region database: %w", err)
	}
	a.dbs = append(a.dbs, regionDB)
	a.Regions = wilayah.NewStore(regionDB, logger)
	if err := a.Regions.EnsureImported(ctx, cfg.SQLFile); err != nil {
		a.Close()
		return nil, err
	}

	userDB, err := db.Open(cfg.UserDBPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open user database: %w", err)
	}
	a.dbs = append(a.dbs, userDB)
	a.Users = userlog.NewStore(userDB, logger)
	if err := a.Users.Migrate(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Weather = weather.NewClient(
		weather.WithBaseURL(cfg.BMKGURL),
		weather.WithRequestDelay(cfg.RequestDelay),
		weather.WithLogger(logger),
	)

	var gen gemini.Generator
	if cfg.AIEnabled() {
		a.Gemini = gemini.NewClient(cfg.GeminiAPIKeys, cfg.GeminiModels,
			gemini.WithBaseURL(cfg.GeminiURL),
			gemini.WithLogger(logger),
		)
		gen = a.Gemini
	}

	split := Split(cfg)
	a.Sessions = session.NewManager(a.Regions, gen, a.Users, logger)
	a.Pipeline = pipeline.New(a.Weather, a.Regions, pipeline.Options{
		Split:        zoneSplit(cfg),
		Total:        cfg.TotalCities,
		TargetHour:   cfg.TargetHour,
		Deadline:     cfg.FetchDeadline,
		UseAI:        cfg.AIEnabled(),
		AIParagraphs: cfg.AIParagraphs,
	}, logger)
	a.Handler = commands.NewHandler(a.Sessions, a.Regions, a.Weather, a.Pipeline, a.Users, commands.Options{
		BotName:    cfg.BotName,
		TargetHour: cfg.TargetHour,
		Split:      split,
	}, logger)

	a.Telegram, err = telegram.NewBot(cfg.TelegramBotToken, cfg.TelegramChatID, telegram.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Telegram.SetHandler(a.Handler)

	a.WhatsApp = whatsapp.NewClient(whatsapp.Config{
		PhoneID:     cfg.WAPhoneID,
		Token:       cfg.WAToken,
		VerifyToken: cfg.WAVerifyToken,
		AppSecret:   cfg.WAAppSecret,
	}, whatsapp.WithLogger(logger))
	a.WhatsApp.SetHandler(a.Handler)

	return a, nil
}

// Split is the configured article composition. Without per-zone counts
// TOTAL_CITIES is divided with the default ratio.
func Split(cfg *config.Config) selector.Split {
	if s := zoneSplit(cfg); s.Total() > 0 {
		return s
	}
	return selector.DefaultSplit(cfg.TotalCities)
}

func zoneSplit(cfg *config.Config) selector.Split {
	return selector.Split{WIB: cfg.WIBCities, WITA: cfg.WITACities, WIT: cfg.WITCities}
}

// AIStatus describes the AI configuration for dashboards.
func (a *App) AIStatus() string {
	if a.Gemini == nil {
		return "nonaktif"
	}
	return fmt.Sprintf("aktif (%d key, %d model)", a.Gemini.Keys(), a.Gemini.Models())
}

// Scheduler builds the cron jobs from the configuration.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	deps := scheduler.Deps{
		Builder:  a.Pipeline,
		Sessions: a.Sessions,
		WhatsApp: a.WhatsApp,
		Images:   satellite.NewFetcher(a.Config.SatelliteURL, a.Config.ImageDir, satellite.WithLogger(a.Logger)),
	}
	if !a.Telegram.Disabled() {
		deps.Telegram = a.Telegram
	}
	return scheduler.New(scheduler.Config{
		ArticleSpec:    a.Config.DailyArticleSchedule,
		SatelliteSpec:  a.Config.SatelliteSchedule,
		WhatsAppTarget: a.Config.WhatsAppTargetNumber,
	}, deps, a.Logger)
}

// Server builds the HTTP front end. Webhook routes are mounted for the
// configured transports; their updates are handled under ctx.
func (a *App) Server(ctx context.Context) *httpapi.Server {
	deps := httpapi.Deps{
		Regions:   a.Regions,
		Usage:     a.Users,
		Forecasts: a.Weather,
		Builder:   a.Pipeline,
		Sessions:  a.Sessions,
	}
	if !a.Telegram.Disabled() {
		deps.Telegram = a.Telegram.WebhookHandler(ctx)
	}
	if a.Config.HasWhatsApp() {
		deps.WhatsAppVerify = a.WhatsApp.VerifyHandler()
		deps.WhatsApp = a.WhatsApp.WebhookHandler(ctx)
	}
	return httpapi.NewServer(httpapi.Options{
		Addr:       a.Config.Addr(),
		BotName:    a.Config.BotName,
		WebhookURL: a.Config.WebhookURL,
		AIStatus:   a.AIStatus(),
	}, deps, a.Logger)
}

// Wait blocks until in-flight chat updates are handled.
func (a *App) Wait() {
	a.Telegram.Wait()
	a.WhatsApp.Wait()
}

// Close closes the databases.
func (a *App) Close() error {
	var errs []error
	for _, d := range a.dbs {
		errs = append(errs, db.Close(d))
	}
	a.dbs = nil
	return errors.Join(errs...)
}
