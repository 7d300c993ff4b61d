package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/ordered"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
)

const (
	bmkgBaseURL         = "https://api.bmkg.go.id/publik/prakiraan-cuaca"
	defaultTimeout      = 10 * time.Second
	defaultRequestDelay = 1500 * time.Millisecond
	userAgent           = "Mozilla/5.0 (compatible; bmkg-artikel-bot/1.0)"

	// DefaultTargetHour is the local hour articles report on.
	DefaultTargetHour = 6

	maxReplacementTries = 5
	datetimeLayout      = "2006-01-02 15:04:05"
)

// ErrNoForecast is returned when the API answered but had no entries for
// the code, which usually means the region is not covered.
var ErrNoForecast = errors.New("no forecast entries")

// Entry is one forecast slot as returned by the BMKG API.
type Entry struct {
	LocalDatetime string  `json:"local_datetime"`
	UTCDatetime   string  `json:"utc_datetime"`
	Temperature   float64 `json:"t"`
	Humidity      float64 `json:"hu"`
	WeatherDesc   string  `json:"weather_desc"`
	WindSpeed     float64 `json:"ws"`
	WindDirection string  `json:"wd"`
	CloudCover    float64 `json:"tcc"`
	Visibility    string  `json:"vs_text"`
}

// localTime parses LocalDatetime.
func (e Entry) localTime() (time.Time, bool) {
	t, err := time.Parse(datetimeLayout, e.LocalDatetime)
	return t, err == nil
}

// Observation is the forecast for one city narrowed to a single slot.
type Observation struct {
	Datetime      string  `json:"datetime"`
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Weather       string  `json:"weather"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection string  `json:"wind_direction"`
	CloudCover    float64 `json:"cloud_cover"`
	Visibility    string  `json:"visibility"`
	TargetHour    int     `json:"target_hour"`
	Timezone      string  `json:"timezone"`

	Location string `json:"location,omitempty"`
	// Fallback is set when no slot had a parseable time and the first
	// entry was used instead.
	Fallback bool `json:"fallback,omitempty"`
}

// Time parses Datetime. The zero time is returned when it is malformed.
func (o Observation) Time() time.Time {
	t, _ := time.Parse(datetimeLayout, o.Datetime)
	return t
}

// Report maps city names to observations in selection order.
type Report = ordered.Map[string, Observation]

// CityPool supplies replacement candidates for cities without data.
type CityPool interface {
	RandomCities(ctx context.Context, count int, zone wilayah.Zone) []wilayah.City
}

// Client fetches forecasts from the BMKG public API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	requestDelay time.Duration
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the forecast endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestDelay sets the pause between consecutive requests in FetchMany.
func WithRequestDelay(d time.Duration) Option {
	return func(c *Client) { c.requestDelay = d }
}

// WithLogger sets the parent logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(l, "weather") }
}

// NewClient creates a new BMKG forecast client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		baseURL:      bmkgBaseURL,
		requestDelay: defaultRequestDelay,
		logger:       logging.Component(nil, "weather"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type forecastResponse struct {
	Data []struct {
		Lokasi struct {
			Provinsi  string `json:"provinsi"`
			Kotkab    string `json:"kotkab"`
			Kecamatan string `json:"kecamatan"`
			Desa      string `json:"desa"`
		} `json:"lokasi"`
		Cuaca [][]Entry `json:"cuaca"`
	} `json:"data"`
}

// forecast is the flattened API answer.
type forecast struct {
	location string
	entries  []Entry
}

func (c *Client) fetchForecast(ctx context.Context, code string) (*forecast, error) {
	params := url.Values{}
	params.Set("adm4", code)
	endpoint := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("BMKG API returned status %d", resp.StatusCode)
	}

	var data forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse BMKG response: %w", err)
	}

	out := &forecast{}
	if len(data.Data) > 0 {
		out.location = data.Data[0].Lokasi.Kotkab
		for _, day := range data.Data[0].Cuaca {
			out.entries = append(out.entries, day...)
		}
	}
	if len(out.entries) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoForecast, code)
	}
	return out, nil
}

// FetchRaw returns every forecast slot for a village-level code, flattened
// across days.
func (c *Client) FetchRaw(ctx context.Context, code string) ([]Entry, error) {
	f, err := c.fetchForecast(ctx, code)
	if err != nil {
		c.logFailure(code, err)
		return nil, err
	}
	return f.entries, nil
}

// NearestToHour returns the entry whose local hour is closest to
// targetHour. Ties go to the earliest entry and an exact match ends the
// scan. Entries with unparseable times are ignored. It returns nil when no
// entry qualifies.
func NearestToHour(entries []Entry, targetHour int) *Entry {
	var (
		best     *Entry
		bestDiff int
	)
	for i := range entries {
		t, ok := entries[i].localTime()
		if !ok {
			continue
		}
		diff := absInt(t.Hour() - targetHour)
		if best == nil || diff < bestDiff {
			best = &entries[i]
			bestDiff = diff
			if diff == 0 {
				break
			}
		}
	}
	return best
}

// Fetch returns the observation nearest targetHour for code. When
// local_datetime is missing it is derived from utc_datetime shifted by
// tzOffset hours. If no slot has a usable time the first slot is returned
// with Fallback set.
func (c *Client) Fetch(ctx context.Context, code string, targetHour, tzOffset int) (*Observation, error) {
	f, err := c.fetchForecast(ctx, code)
	if err != nil {
		c.logFailure(code, err)
		return nil, err
	}

	fillLocalTimes(f.entries, tzOffset)

	entry := NearestToHour(f.entries, targetHour)
	fallback := false
	if entry == nil {
		entry = &f.entries[0]
		fallback = true
		c.logger.Warn("no slot near target hour, using first entry", "code", code, "target_hour", targetHour)
	}

	return &Observation{
		Datetime:      entry.LocalDatetime,
		Temperature:   entry.Temperature,
		Humidity:      entry.Humidity,
		Weather:       entry.WeatherDesc,
		WindSpeed:     entry.WindSpeed,
		WindDirection: entry.WindDirection,
		CloudCover:    entry.CloudCover,
		Visibility:    entry.Visibility,
		TargetHour:    targetHour,
		Location:      f.location,
		Fallback:      fallback,
	}, nil
}

// FetchCity fetches one city and stamps its zone on the observation.
func (c *Client) FetchCity(ctx context.Context, city wilayah.City, targetHour int) (*Observation, error) {
	obs, err := c.Fetch(ctx, city.Code, targetHour, city.TimezoneOffset)
	if err != nil {
		return nil, err
	}
	obs.Timezone = string(city.Timezone)
	return obs, nil
}

// ManyOptions controls FetchMany.
type ManyOptions struct {
	TargetHour int
	// AutoReplace substitutes cities without data with random cities from
	// the same zone drawn from Pool.
	AutoReplace bool
	Pool        CityPool
}

// FetchMany fetches every selected city in order, pausing between
// requests. Cities without data are dropped, or replaced when AutoReplace
// is set: each failed city gets up to five random same-zone candidates,
// skipping names already attempted. Cancelling ctx stops the run and
// returns what was collected so far.
func (c *Client) FetchMany(ctx context.Context, sel *ordered.Map[string, wilayah.City], opts ManyOptions) *Report {
	report := ordered.New[string, Observation]()
	var failed []wilayah.City
	first := true

	sel.Each(func(name string, city wilayah.City) bool {
		if !first && !c.pause(ctx) {
			return false
		}
		first = false

		obs, err := c.FetchCity(ctx, city, opts.TargetHour)
		if err != nil {
			failed = append(failed, city)
			return ctx.Err() == nil
		}
		report.Set(name, *obs)
		c.logger.Info("forecast fetched", "city", name, "weather", obs.Weather, "temperature", obs.Temperature)
		return true
	})

	if len(failed) == 0 || !opts.AutoReplace || opts.Pool == nil || ctx.Err() != nil {
		return report
	}

	attempted := make(map[string]bool, sel.Len())
	for _, name := range sel.Keys() {
		attempted[name] = true
	}

	for _, city := range failed {
		c.logger.Info("looking for replacement", "city", city.Name, "zone", city.Timezone)
		for try := 0; try < maxReplacementTries; try++ {
			if ctx.Err() != nil {
				return report
			}
			candidates := opts.Pool.RandomCities(ctx, 1, city.Timezone)
			if len(candidates) == 0 {
				break
			}
			cand := candidates[0]
			if attempted[cand.Name] {
				continue
			}
			attempted[cand.Name] = true

			if !c.pause(ctx) {
				return report
			}
			obs, err := c.FetchCity(ctx, cand, opts.TargetHour)
			if err != nil {
				continue
			}
			report.Set(cand.Name, *obs)
			c.logger.Info("city replaced", "failed", city.Name, "replacement", cand.Name)
			break
		}
		if !report.Has(city.Name) {
			c.logger.Warn("no replacement found", "city", city.Name)
		}
	}
	return report
}

// pause waits for the request delay. It returns false if ctx ends first.
func (c *Client) pause(ctx context.Context) bool {
	if c.requestDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(c.requestDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) logFailure(code string, err error) {
	if errors.Is(err, ErrNoForecast) {
		c.logger.Warn("no forecast entries, region may be unsupported", "code", code)
		return
	}
	c.logger.Error("forecast request failed", "code", code, "error", err)
}

// fillLocalTimes derives missing local times from UTC times.
func fillLocalTimes(entries []Entry, tzOffset int) {
	for i := range entries {
		if _, ok := entries[i].localTime(); ok {
			continue
		}
		utc, err := time.Parse(datetimeLayout, entries[i].UTCDatetime)
		if err != nil {
			continue
		}
		entries[i].LocalDatetime = utc.Add(time.Duration(tzOffset) * time.Hour).Format(datetimeLayout)
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
