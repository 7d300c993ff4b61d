// Package scheduler runs the daily article broadcast and the satellite image
// check on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/pipeline"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/satellite"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/session"
)

// DefaultTimezone is the zone cron specs are read in.
const DefaultTimezone = "Asia/Jakarta"

const defaultArticleTimeout = 5 * time.Minute

// Builder produces an article for a session.
type Builder interface {
	Build(ctx context.Context, sess *session.Session, req pipeline.Request, rep pipeline.Reporter) (*pipeline.Result, error)
}

// Sessions hands out fresh, unpersisted sessions.
type Sessions interface {
	New() *session.Session
}

// TelegramSender broadcasts to the configured Telegram chat.
type TelegramSender interface {
	Broadcast(title, body string) error
	SendPhoto(name string, data []byte, caption string) error
	SendAlert(title, message string) error
}

// WhatsAppSender broadcasts to a WhatsApp number.
type WhatsAppSender interface {
	Enabled() bool
	Broadcast(ctx context.Context, to, title, body string) error
}

// ImageFetcher downloads the satellite image.
type ImageFetcher interface {
	Fetch(ctx context.Context) (*satellite.Image, error)
}

// Config holds the job schedules. An empty spec disables its job.
type Config struct {
	ArticleSpec    string
	SatelliteSpec  string
	WhatsAppTarget string
	ArticleTimeout time.Duration
	Location       *time.Location
}

// Deps are the collaborators the jobs use. Telegram, WhatsApp and Images
// may be nil.
type Deps struct {
	Builder  Builder
	Sessions Sessions
	Telegram TelegramSender
	WhatsApp WhatsAppSender
	Images   ImageFetcher
}

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	cfg    Config
	deps   Deps
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

// New registers the configured jobs. Invalid cron specs are errors.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		cfg.Location = loc
	}
	if cfg.ArticleTimeout <= 0 {
		cfg.ArticleTimeout = defaultArticleTimeout
	}

	s := &Scheduler{
		cfg:    cfg,
		deps:   deps,
		logger: logging.Component(logger, "scheduler"),
		now:    time.Now,
	}
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)

	if cfg.ArticleSpec != "" && deps.Builder != nil && deps.Sessions != nil {
		if _, err := s.cron.AddFunc(cfg.ArticleSpec, s.articleJob); err != nil {
			return nil, fmt.Errorf("schedule daily article %q: %w", cfg.ArticleSpec, err)
		}
		s.logger.Info("daily article scheduled", "spec", cfg.ArticleSpec, "tz", cfg.Location.String())
	}
	if cfg.SatelliteSpec != "" && deps.Images != nil && deps.Telegram != nil {
		if _, err := s.cron.AddFunc(cfg.SatelliteSpec, s.satelliteJob); err != nil {
			return nil, fmt.Errorf("schedule satellite check %q: %w", cfg.SatelliteSpec, err)
		}
		s.logger.Info("satellite check scheduled", "spec", cfg.SatelliteSpec, "tz", cfg.Location.String())
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("next run", "entry", e.ID, "at", e.Next.Format(time.RFC3339))
	}
}

// Stop stops scheduling and waits up to ctx for running jobs.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("jobs still running at shutdown")
	}
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) articleJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ArticleTimeout)
	defer cancel()
	if err := s.RunArticle(ctx); err != nil {
		s.logger.Error("daily article failed", "error", err)
		if s.deps.Telegram != nil {
			_ = s.deps.Telegram.SendAlert("Artikel harian gagal", err.Error())
		}
	}
}

func (s *Scheduler) satelliteJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ArticleTimeout)
	defer cancel()
	if _, err := s.RunSatellite(ctx); err != nil {
		s.logger.Error("satellite check failed", "error", err)
	}
}

// RunArticle builds an article with a fresh session and broadcasts it to
// every configured target. Delivery errors are joined.
func (s *Scheduler) RunArticle(ctx context.Context) error {
	start := s.now()
	res, err := s.deps.Builder.Build(ctx, s.deps.Sessions.New(), pipeline.Request{}, pipeline.ReporterFunc(func(e pipeline.Event) {
		s.logger.Debug("article progress", "run_id", e.RunID, "stage", e.Stage, "message", e.Message)
	}))
	if err != nil {
		return fmt.Errorf("build article: %w", err)
	}
	s.logger.Info("article built", "run_id", res.RunID, "title", res.Article.Title, "ai", res.Article.AIEnhanced)

	var errs []error
	if s.deps.Telegram != nil {
		if err := s.deps.Telegram.Broadcast(res.Article.Title, res.Article.Body); err != nil {
			errs = append(errs, fmt.Errorf("telegram: %w", err))
		}
	}
	if s.deps.WhatsApp != nil && s.deps.WhatsApp.Enabled() && s.cfg.WhatsAppTarget != "" {
		if err := s.deps.WhatsApp.Broadcast(ctx, s.cfg.WhatsAppTarget, res.Article.Title, res.Article.Body); err != nil {
			errs = append(errs, fmt.Errorf("whatsapp: %w", err))
		}
	}
	s.logger.Info("daily article done", "run_id", res.RunID, "took", s.now().Sub(start).Round(time.Millisecond))
	return errors.Join(errs...)
}

// RunSatellite fetches the satellite image and sends it to Telegram when it
// changed. It reports whether a photo was sent.
func (s *Scheduler) RunSatellite(ctx context.Context) (bool, error) {
	img, err := s.deps.Images.Fetch(ctx)
	if err != nil {
		return false, err
	}
	if !img.Changed {
		return false, nil
	}
	if err := s.deps.Telegram.SendPhoto(img.Kind+".png", img.Data, satellite.Caption(s.now())); err != nil {
		return false, fmt.Errorf("send satellite image: %w", err)
	}
	s.logger.Info("satellite image sent", "hash", img.Hash)
	return true, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
