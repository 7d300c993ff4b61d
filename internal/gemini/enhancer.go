package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/article"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
)

// Generator produces text for a prompt. *Client implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ParagraphKind selects which optional paragraph to generate.
type ParagraphKind string

const (
	Intro   ParagraphKind = "intro"
	Closing ParagraphKind = "closing"
)

// Enhancer is the best-effort AI layer of one session. Once the generator
// reports ErrExhausted, the enhancer stays unavailable for its lifetime.
type Enhancer struct {
	gen    Generator
	logger *slog.Logger

	mu     sync.Mutex
	down   bool
	reason string
}

// NewEnhancer wraps gen. A nil gen gives an enhancer that is unavailable
// from the start.
func NewEnhancer(gen Generator, logger *slog.Logger) *Enhancer {
	e := &Enhancer{gen: gen, logger: logging.Component(logger, "ai")}
	if c, ok := gen.(*Client); gen == nil || (ok && c == nil) {
		e.gen = nil
		e.down, e.reason = true, "AI enhancement dinonaktifkan"
	}
	return e
}

// Available reports whether the enhancer will still call the API.
func (e *Enhancer) Available() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.down
}

// Status is a short human-readable state for /stats.
func (e *Enhancer) Status() string {
	if e == nil {
		return "tidak tersedia"
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.down {
		if c, ok := e.gen.(*Client); ok {
			return fmt.Sprintf("aktif (%d key, %d model)", c.Keys(), c.Models())
		}
		return "aktif"
	}
	return "tidak tersedia: " + e.reason
}

func (e *Enhancer) generate(ctx context.Context, prompt string) (string, bool) {
	if !e.Available() {
		return "", false
	}
	text, err := e.gen.Generate(ctx, prompt)
	if err == nil {
		return text, true
	}

	switch {
	case errors.Is(err, ErrExhausted), errors.Is(err, ErrNoKeys):
		reason := strings.TrimPrefix(err.Error(), ErrExhausted.Error()+": ")
		e.mu.Lock()
		e.down, e.reason = true, reason
		e.mu.Unlock()
		e.logger.Warn("AI disabled for this session", "reason", reason)
	case ctx.Err() != nil:
		e.logger.Debug("AI call cancelled", "error", err)
	default:
		e.logger.Warn("AI call failed", "error", err)
	}
	return "", false
}

// Enhance asks for a headline. It returns false when the AI is unavailable,
// the answer is unusable, or the headline names a major city that is not in
// report.
func (e *Enhancer) Enhance(ctx context.Context, report *weather.Report) (string, bool) {
	if report.Len() == 0 {
		return "", false
	}
	raw, ok := e.generate(ctx, titlePrompt(article.Summary(report)))
	if !ok {
		return "", false
	}
	title := CleanTitle(raw)
	if title == "" {
		e.logger.Warn("AI title empty after cleanup", "raw", raw)
		return "", false
	}
	if city, foreign := mentionsForeignCity(title, report.Keys()); foreign {
		e.logger.Warn("AI title rejected", "title", title, "city", city)
		return "", false
	}
	return title, true
}

// Paragraph asks for an optional intro or closing paragraph.
func (e *Enhancer) Paragraph(ctx context.Context, kind ParagraphKind, report *weather.Report) (string, bool) {
	if report.Len() == 0 {
		return "", false
	}
	var prompt string
	switch kind {
	case Intro:
		prompt = introPrompt(report)
	case Closing:
		prompt = closingPrompt(report)
	default:
		return "", false
	}
	text, ok := e.generate(ctx, prompt)
	if !ok {
		return "", false
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, "**", ""))
	return text, text != ""
}

// CleanTitle keeps the first non-blank line and strips markdown emphasis,
// surrounding quotes and a leading "Judul:" label.
func CleanTitle(raw string) string {
	var line string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	line = strings.ReplaceAll(line, "*", "")
	line = strings.TrimLeft(line, "# ")
	if len(line) >= 6 && strings.EqualFold(line[:6], "judul:") {
		line = line[6:]
	}
	return strings.Trim(strings.TrimSpace(line), "\"'“”")
}

func titlePrompt(summary string) string {
	return `Buatkan 1 judul berita cuaca yang menarik dan SEO-friendly untuk media nasional Indonesia.

Data cuaca:
` + summary + `

ATURAN:
1. WAJIB cantumkan "BMKG" atau "Prakiraan BMKG"
2. Fokus pada kondisi ekstrem (hujan, badai, panas terik)
3. Sebutkan 2-3 kota dengan kondisi berbeda
4. Gunakan kata kerja aktif: Waspada, Ingatkan, Prakirakan
5. Jangan monoton

Berikan HANYA 1 judul tanpa penjelasan.`
}

func introPrompt(report *weather.Report) string {
	var lines []string
	report.Each(func(name string, obs weather.Observation) bool {
		lines = append(lines, fmt.Sprintf("%s: %s (%.0f°C)", name, obs.Weather, obs.Temperature))
		return true
	})
	return "Buatkan 1 paragraf pembuka menarik (2-3 kalimat) untuk artikel berita cuaca:\n\n" +
		strings.Join(lines, "\n") +
		"\n\nGunakan Bahasa Indonesia formal dan menarik perhatian pembaca.\n" +
		"Berikan HANYA paragraf pembuka tanpa penjelasan."
}

func closingPrompt(report *weather.Report) string {
	var rainy, hot []string
	report.Each(func(name string, obs weather.Observation) bool {
		if strings.Contains(strings.ToLower(obs.Weather), "hujan") {
			rainy = append(rainy, name)
		}
		if obs.Temperature >= 30 {
			hot = append(hot, name)
		}
		return true
	})

	var notes []string
	if len(rainy) > 0 {
		notes = append(notes, "Kota dengan hujan: "+strings.Join(rainy, ", "))
	}
	if len(hot) > 0 {
		notes = append(notes, "Kota dengan suhu tinggi: "+strings.Join(hot, ", "))
	}
	ctxLine := "Kondisi cuaca bervariasi"
	if len(notes) > 0 {
		ctxLine = strings.Join(notes, " | ")
	}
	return "Buatkan 1 paragraf penutup (2-3 kalimat) untuk artikel berita cuaca dengan tips/saran masyarakat.\n\n" +
		"Konteks: " + ctxLine +
		"\n\nGunakan Bahasa Indonesia formal dan informatif.\n" +
		"Berikan HANYA paragraf penutup tanpa penjelasan."
}
