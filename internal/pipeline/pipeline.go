package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/article"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/gemini"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/ordered"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/selector"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/session"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
)

// Progress stages.
const (
	StageSelect  = "select"
	StageFetch   = "fetch"
	StageRender  = "render"
	StageEnhance = "enhance"
	StageDone    = "done"
)

// ErrNotEnoughData means fewer than article.MinCities cities had forecasts.
var ErrNotEnoughData = errors.New("not enough cities with forecast data")

// NotFoundError lists requested city names the region store does not know.
type NotFoundError struct {
	Names []string
}

func (e *NotFoundError) Error() string {
	return "Kota tidak ditemukan: " + strings.Join(e.Names, ", ")
}

// Event is a progress notification.
type Event struct {
	RunID   string `json:"run_id"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Reporter receives progress events. It must not block for long.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Fetcher retrieves forecasts for a selection. *weather.Client implements it.
type Fetcher interface {
	FetchMany(ctx context.Context, sel *ordered.Map[string, wilayah.City], opts weather.ManyOptions) *weather.Report
}

// Request describes one article build.
type Request struct {
	Cities []string // optional; at most article.MinCities are used
}

// Result is a finished article with its source data.
type Result struct {
	RunID   string          `json:"run_id"`
	Article article.Article `json:"article"`
	Report  *weather.Report `json:"-"`
	Summary string          `json:"summary"`
}

// Options configures a Pipeline.
type Options struct {
	Split        selector.Split
	Total        int // random selection size when Split is zero
	TargetHour   int
	Deadline     time.Duration // overall fetch budget, zero for none
	UseAI        bool
	AIParagraphs bool
}

// Pipeline runs select, fetch, render and enhance for one session.
type Pipeline struct {
	fetcher Fetcher
	pool    weather.CityPool
	opts    Options
	logger  *slog.Logger
}

// New creates a pipeline. pool supplies replacements for cities without data.
func New(fetcher Fetcher, pool weather.CityPool, opts Options, logger *slog.Logger) *Pipeline {
	if opts.Split.Total() == 0 && opts.Total < article.MinCities {
		opts.Total = article.MinCities
	}
	return &Pipeline{
		fetcher: fetcher,
		pool:    pool,
		opts:    opts,
		logger:  logging.Component(logger, "pipeline"),
	}
}

// Build produces an article for sess. With requested names the selection is
// replaced by those cities and topped up to four with random ones keeping
// the 2/1/1 zone quota; without names a random selection is drawn. The
// caller must hold the session lock.
func (p *Pipeline) Build(ctx context.Context, sess *session.Session, req Request, rep Reporter) (*Result, error) {
	if rep == nil {
		rep = ReporterFunc(func(Event) {})
	}
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID, "user", sess.User.String())
	emit := func(stage, format string, args ...any) {
		rep.Report(Event{RunID: runID, Stage: stage, Message: fmt.Sprintf(format, args...)})
	}
	start := time.Now()

	emit(StageSelect, "Memilih kota...")
	if err := p.selectCities(ctx, sess.Selector, req.Cities); err != nil {
		logger.Info("selection failed", "error", err)
		return nil, err
	}
	sel := sess.Selector.Selected()
	logger.Info("cities selected", "cities", sel.Keys())

	emit(StageFetch, "Mengambil data cuaca untuk %d kota...", sel.Len())
	fetchCtx := ctx
	if p.opts.Deadline > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.opts.Deadline)
		defer cancel()
	}
	report := p.fetcher.FetchMany(fetchCtx, sel, weather.ManyOptions{
		TargetHour:  p.opts.TargetHour,
		AutoReplace: true,
		Pool:        p.pool,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if report.Len() < article.MinCities {
		logger.Warn("not enough forecast data", "got", report.Len(), "cities", report.Keys())
		return nil, fmt.Errorf("%w: %d of %d", ErrNotEnoughData, report.Len(), article.MinCities)
	}

	emit(StageRender, "Menyusun artikel...")
	body, err := article.Render(report)
	if err != nil {
		return nil, err
	}
	art := article.Article{
		Title:  article.Title(report),
		Body:   body,
		Cities: report.Keys()[:article.MinCities],
	}

	if p.opts.UseAI && sess.Enhancer.Available() {
		emit(StageEnhance, "Meningkatkan judul dengan AI...")
		p.enhance(ctx, sess.Enhancer, report, &art)
	}

	emit(StageDone, "Artikel selesai: %s", art.Title)
	logger.Info("article built", "title", art.Title, "ai", art.AIEnhanced, "elapsed", time.Since(start).Round(time.Millisecond))

	return &Result{RunID: runID, Article: art, Report: report, Summary: article.Summary(report)}, nil
}

func (p *Pipeline) enhance(ctx context.Context, e *gemini.Enhancer, report *weather.Report, art *article.Article) {
	if title, ok := e.Enhance(ctx, report); ok {
		art.Title = title
		art.AIEnhanced = true
	}
	if !p.opts.AIParagraphs {
		return
	}
	if intro, ok := e.Paragraph(ctx, gemini.Intro, report); ok {
		art.Body = intro + "\n\n" + art.Body
	}
	if closing, ok := e.Paragraph(ctx, gemini.Closing, report); ok {
		art.Body = art.Body + "\n\n" + closing
	}
}

func (p *Pipeline) selectCities(ctx context.Context, sel *selector.Selector, names []string) error {
	if len(names) == 0 {
		var picked *selector.Selection
		if p.opts.Split.Total() > 0 {
			picked = sel.SelectSplit(ctx, p.opts.Split)
		} else {
			picked = sel.SelectRandom(ctx, p.opts.Total)
		}
		if picked.Len() == 0 {
			return fmt.Errorf("%w: region store returned no cities", ErrNotEnoughData)
		}
		return nil
	}

	if len(names) > article.MinCities {
		return &article.ValidationError{Max: article.MinCities, Got: len(names)}
	}
	sel.Clear()
	var notFound []string
	for _, name := range names {
		if !sel.AddSpecific(ctx, name) {
			notFound = append(notFound, name)
		}
	}
	if len(notFound) > 0 {
		return &NotFoundError{Names: notFound}
	}

	if missing := sel.Missing(selector.DefaultSplit(article.MinCities)); missing.Total() > 0 {
		sel.FillRandom(ctx, missing)
	}
	return nil
}
