package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/article"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/ordered"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/pipeline"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/selector"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/session"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/userlog"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
)

// Transport identifies where a message came from.
type Transport string

const (
	Telegram Transport = "telegram"
	WhatsApp Transport = "whatsapp"
	CLI      Transport = "cli"
)

// WhatsAppArticleLimit caps article bodies sent over WhatsApp.
const WhatsAppArticleLimit = 3500

const (
	searchLimit  = 10
	listPerZone  = 10
	maxArticleIn = 4
)

// Message is an incoming chat message.
type Message struct {
	UserID    int64
	Username  string
	Name      string
	Text      string
	Transport Transport
}

// Key identifies the sender. UserID is only unique within one transport.
func (m Message) Key() userlog.Key {
	return userlog.NewKey(string(m.Transport), m.UserID)
}

// Reply is one outgoing message. Markdown replies use the *bold* and
// _italic_ markup both chat transports understand.
type Reply struct {
	Text     string
	Markdown bool
}

// ReplyFunc sends a reply back to the user.
type ReplyFunc func(Reply)

// Regions is the part of the region store the commands read.
type Regions interface {
	CitiesByTimezone(ctx context.Context, zone wilayah.Zone) []wilayah.City
	AllProvinces(ctx context.Context) []wilayah.Unit
	CitiesByProvince(ctx context.Context, provinceCode string) []wilayah.City
}

// Forecaster fetches observations. *weather.Client implements it.
type Forecaster interface {
	FetchCity(ctx context.Context, city wilayah.City, targetHour int) (*weather.Observation, error)
	FetchMany(ctx context.Context, sel *ordered.Map[string, wilayah.City], opts weather.ManyOptions) *weather.Report
}

// Builder produces articles. *pipeline.Pipeline implements it.
type Builder interface {
	Build(ctx context.Context, sess *session.Session, req pipeline.Request, rep pipeline.Reporter) (*pipeline.Result, error)
}

// ActivityLog records usage. *userlog.Store implements it.
type ActivityLog interface {
	LogActivity(ctx context.Context, key userlog.Key, username, name, command string) error
	TotalUsers(ctx context.Context) (int, error)
}

// Options configures a Handler.
type Options struct {
	BotName    string
	TargetHour int
	Split      selector.Split
}

// Handler dispatches chat commands. It is shared by every transport.
type Handler struct {
	sessions *session.Manager
	regions  Regions
	weather  Forecaster
	builder  Builder
	activity ActivityLog
	opts     Options
	started  time.Time
	logger   *slog.Logger
}

// NewHandler wires the command handler. activity may be nil.
func NewHandler(sessions *session.Manager, regions Regions, fc Forecaster, builder Builder, activity ActivityLog, opts Options, logger *slog.Logger) *Handler {
	if opts.Split.Total() == 0 {
		opts.Split = selector.DefaultSplit(article.MinCities)
	}
	if opts.BotName == "" {
		opts.BotName = "BMKG Weather Bot"
	}
	return &Handler{
		sessions: sessions,
		regions:  regions,
		weather:  fc,
		builder:  builder,
		activity: activity,
		opts:     opts,
		started:  time.Now(),
		logger:   logging.Component(logger, "commands"),
	}
}

// Parse splits "/cmd@bot arg arg" into the lower-cased command and its
// arguments. Plain text gives an empty command.
func Parse(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", fields
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

// ParseCityArgs groups arguments into city names. A capitalised word starts
// a new name, so "Kota Baru Bandung" gives ["Kota", "Baru", "Bandung"] and
// "Banda aceh Medan" gives ["Banda aceh", "Medan"].
func ParseCityArgs(args []string) []string {
	var names, current []string
	for _, arg := range args {
		first := []rune(arg)[0]
		if unicode.IsUpper(first) && len(current) > 0 {
			names = append(names, strings.Join(current, " "))
			current = nil
		}
		current = append(current, arg)
	}
	if len(current) > 0 {
		names = append(names, strings.Join(current, " "))
	}
	return names
}

// Handle runs one message and sends its replies through reply.
func (h *Handler) Handle(ctx context.Context, msg Message, reply ReplyFunc) {
	cmd, args := Parse(msg.Text)
	logged := "/" + cmd
	if cmd == "" {
		logged = "text"
	}
	h.logger.Info("command", "user_id", msg.UserID, "transport", msg.Transport, "command", logged)
	if h.activity != nil {
		if err := h.activity.LogActivity(ctx, msg.Key(), msg.Username, msg.Name, logged); err != nil {
			h.logger.Warn("activity log failed", "user_id", msg.UserID, "error", err)
		}
	}

	sess := h.sessions.Get(ctx, msg.Key())
	sess.Lock()
	defer sess.Unlock()

	switch cmd {
	case "start", "mulai":
		reply(h.start())
	case "help", "bantuan":
		reply(h.help())
	case "artikel":
		h.artikel(ctx, sess, msg, args, reply)
	case "cuaca":
		h.cuaca(ctx, sess, strings.Join(args, " "), reply)
	case "cuaca3":
		h.cuaca3(ctx, reply)
	case "cari":
		h.cari(ctx, sess, strings.Join(args, " "), reply)
	case "kota":
		h.kota(ctx, sess, reply)
	case "random":
		h.random(ctx, sess, reply)
	case "provinsi":
		h.provinsi(ctx, args, reply)
	case "list", "daftar":
		h.list(ctx, reply)
	case "stats":
		h.stats(ctx, sess, reply)
	case "":
		h.text(ctx, sess, strings.Join(args, " "), reply)
	default:
		reply(Reply{Text: unknownText})
	}
}

func (h *Handler) start() Reply {
	return Reply{Text: fmt.Sprintf(welcomeText, h.opts.BotName), Markdown: true}
}

func (h *Handler) help() Reply {
	return Reply{Text: helpText, Markdown: true}
}

func (h *Handler) text(ctx context.Context, sess *session.Session, text string, reply ReplyFunc) {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case lower == "":
		reply(Reply{Text: unknownText})
	case hasWord(lower, greetings):
		reply(h.start())
	case hasWord(lower, helpWords):
		reply(h.help())
	default:
		h.cuaca(ctx, sess, text, reply)
	}
}

func hasWord(text string, words []string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool { return unicode.IsSpace(r) || r == ',' || r == '!' }) {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

func (h *Handler) artikel(ctx context.Context, sess *session.Session, msg Message, args []string, reply ReplyFunc) {
	names := ParseCityArgs(args)
	if len(names) > maxArticleIn {
		reply(Reply{Text: "❌ Maksimal 4 kota untuk 1 artikel.\n\nContoh: `/artikel Jakarta Bandung Surabaya Denpasar`", Markdown: true})
		return
	}

	reply(Reply{Text: "⏳ Mengambil data cuaca dari BMKG..."})
	res, err := h.builder.Build(ctx, sess, pipeline.Request{Cities: names}, pipeline.ReporterFunc(func(e pipeline.Event) {
		if e.Stage == pipeline.StageEnhance {
			reply(Reply{Text: "🤖 Meningkatkan artikel dengan AI..."})
		}
	}))
	h.sessions.Save(ctx, sess)

	var nf *pipeline.NotFoundError
	var verr *article.ValidationError
	switch {
	case errors.As(err, &verr):
		reply(Reply{Text: "❌ " + verr.Error()})
		return
	case errors.As(err, &nf):
		reply(Reply{Text: fmt.Sprintf("❌ Kota tidak ditemukan: %s\n\nGunakan /cari [nama kota] untuk mencari kota yang tersedia.", strings.Join(nf.Names, ", "))})
		return
	case errors.Is(err, pipeline.ErrNotEnoughData):
		reply(Reply{Text: "❌ Gagal mengambil data cuaca dari BMKG. Silakan coba lagi."})
		return
	case err != nil:
		h.logger.Error("article failed", "user_id", msg.UserID, "error", err)
		reply(Reply{Text: errorText})
		return
	}

	body := res.Article.Body
	if msg.Transport == WhatsApp && len(body) > WhatsAppArticleLimit {
		body = truncate(body, WhatsAppArticleLimit) + "..."
	}
	reply(Reply{Text: "📰 *" + res.Article.Title + "*", Markdown: true})
	reply(Reply{Text: body})

	var b strings.Builder
	b.WriteString("📍 *Kota dalam artikel:*\n")
	res.Report.Each(func(name string, obs weather.Observation) bool {
		fmt.Fprintf(&b, "• %s (%s)\n", name, obs.Timezone)
		return true
	})
	if res.Article.AIEnhanced {
		b.WriteString("\n🤖 Judul ditingkatkan dengan AI")
	}
	reply(Reply{Text: strings.TrimRight(b.String(), "\n"), Markdown: true})
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (h *Handler) cuaca(ctx context.Context, sess *session.Session, query string, reply ReplyFunc) {
	query = strings.TrimSpace(query)
	if query == "" {
		reply(Reply{Text: "❌ Gunakan format: /cuaca [nama kota]\n\nContoh: /cuaca Jakarta"})
		return
	}

	city := sess.Selector.SearchExact(ctx, query)
	if city == nil {
		reply(Reply{Text: fmt.Sprintf(notFoundText, query, query)})
		return
	}
	reply(Reply{Text: fmt.Sprintf("⏳ Mencari data cuaca %s...", city.Name)})

	obs, err := h.weather.FetchCity(ctx, *city, h.opts.TargetHour)
	if err != nil {
		h.logger.Warn("weather lookup failed", "city", city.Name, "error", err)
		reply(Reply{Text: fmt.Sprintf("❌ Gagal mengambil data cuaca untuk %s", city.Name)})
		return
	}
	reply(Reply{Text: formatObservation(city.Name, obs), Markdown: true})
}

func formatObservation(name string, obs *weather.Observation) string {
	return fmt.Sprintf(`🌤️ *Cuaca %s*

📅 %s, %s
🕐 %s %s

☁️ Kondisi: %s
🌡️ Suhu: %.0f°C
💧 Kelembapan: %.0f%%
💨 Angin: %.1f km/jam dari %s

%s`,
		name,
		article.DayName(obs.Datetime), article.FormatDate(obs.Datetime),
		article.FormatHour(obs.Datetime), obs.Timezone,
		obs.Weather, obs.Temperature, obs.Humidity,
		obs.WindSpeed, orNA(obs.WindDirection),
		footer)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func (h *Handler) cuaca3(ctx context.Context, reply ReplyFunc) {
	sel := ordered.New[string, wilayah.City]()
	for _, zone := range wilayah.Zones {
		if cities := h.regions.CitiesByTimezone(ctx, zone); len(cities) > 0 {
			sel.Set(cities[0].Name, cities[0])
		}
	}
	if sel.Len() == 0 {
		reply(Reply{Text: "⚠️ Gagal mendapatkan data kota. Silakan coba lagi."})
		return
	}

	report := h.weather.FetchMany(ctx, sel, weather.ManyOptions{TargetHour: h.opts.TargetHour})
	if report.Len() == 0 {
		reply(Reply{Text: "⚠️ Gagal mengambil data cuaca. Silakan coba lagi."})
		return
	}

	var b strings.Builder
	b.WriteString("🌤️ *Prakiraan 3 Kota Indonesia*\n\n")
	var date string
	report.Each(func(name string, obs weather.Observation) bool {
		if date == "" {
			date = article.FormatDate(obs.Datetime)
		}
		fmt.Fprintf(&b, "📍 *%s* (%s)\n", name, obs.Timezone)
		fmt.Fprintf(&b, "   🌡️ %.0f°C | %s\n", obs.Temperature, obs.Weather)
		fmt.Fprintf(&b, "   💧 %.0f%% | 💨 %.1f km/jam\n\n", obs.Humidity, obs.WindSpeed)
		return true
	})
	fmt.Fprintf(&b, "📅 %s\n_Data dari BMKG_", date)
	reply(Reply{Text: b.String(), Markdown: true})
}

func (h *Handler) cari(ctx context.Context, sess *session.Session, keyword string, reply ReplyFunc) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		reply(Reply{Text: "❌ Gunakan format: /cari [nama kota]\n\nContoh: /cari Bandung"})
		return
	}
	results := sess.Selector.SearchByKeyword(ctx, keyword, searchLimit)
	if len(results) == 0 {
		reply(Reply{Text: fmt.Sprintf("❌ Tidak ditemukan kota dengan kata kunci '%s'", keyword)})
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 *Hasil pencarian '%s':*\n\n", keyword)
	for _, c := range results {
		fmt.Fprintf(&b, "📍 *%s*\n   Kode: `%s`\n   Zona: %s (UTC+%d)\n\n", c.Name, c.Code, c.Timezone, c.TimezoneOffset)
	}
	fmt.Fprintf(&b, "Ditemukan %d kota.", len(results))
	reply(Reply{Text: b.String(), Markdown: true})
}

func (h *Handler) kota(ctx context.Context, sess *session.Session, reply ReplyFunc) {
	if sess.Selector.Len() == 0 {
		sess.Selector.SelectSplit(ctx, h.opts.Split)
		h.sessions.Save(ctx, sess)
	}
	sel := sess.Selector.Selected()

	var b strings.Builder
	b.WriteString("📍 *Kota yang sedang dipilih:*\n\n")
	writeByZone(&b, sel, true)
	fmt.Fprintf(&b, "Total: %d kota\n\nGunakan /random untuk pilih kota baru", sel.Len())
	reply(Reply{Text: b.String(), Markdown: true})
}

func (h *Handler) random(ctx context.Context, sess *session.Session, reply ReplyFunc) {
	reply(Reply{Text: fmt.Sprintf("🎲 Memilih %d kota random...", h.opts.Split.Total())})
	sel := sess.Selector.SelectSplit(ctx, h.opts.Split)
	h.sessions.Save(ctx, sess)

	var b strings.Builder
	b.WriteString("✅ *Kota baru berhasil dipilih!*\n\n")
	writeByZone(&b, sel, false)
	b.WriteString("Gunakan /artikel untuk generate berita cuaca")
	reply(Reply{Text: b.String(), Markdown: true})
}

func writeByZone(b *strings.Builder, sel *selector.Selection, withOffset bool) {
	for _, zone := range wilayah.Zones {
		var names []string
		sel.Each(func(name string, c wilayah.City) bool {
			if c.Timezone == zone {
				names = append(names, name)
			}
			return true
		})
		if len(names) == 0 {
			continue
		}
		if withOffset {
			fmt.Fprintf(b, "*%s (UTC+%d):*\n", zone, zone.Offset())
		} else {
			fmt.Fprintf(b, "*%s:*\n", zone)
		}
		for _, n := range names {
			fmt.Fprintf(b, "  • %s\n", n)
		}
		b.WriteString("\n")
	}
}

func (h *Handler) provinsi(ctx context.Context, args []string, reply ReplyFunc) {
	if len(args) == 0 {
		provinces := h.regions.AllProvinces(ctx)
		if len(provinces) == 0 {
			reply(Reply{Text: errorText})
			return
		}
		var b strings.Builder
		b.WriteString("🗺️ *Daftar Provinsi*\n\n")
		for _, p := range provinces {
			fmt.Fprintf(&b, "`%s` %s\n", p.Code, wilayah.CleanName(p.Name))
		}
		b.WriteString("\nGunakan /provinsi [kode] untuk melihat kota dalam provinsi")
		reply(Reply{Text: b.String(), Markdown: true})
		return
	}

	code := args[0]
	cities := h.regions.CitiesByProvince(ctx, code)
	if len(cities) == 0 {
		reply(Reply{Text: fmt.Sprintf("❌ Tidak ada kota untuk kode provinsi '%s'", code)})
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏙️ *Kota di provinsi %s:*\n\n", code)
	for _, c := range cities {
		fmt.Fprintf(&b, "• %s (%s)\n", c.Name, c.Timezone)
	}
	fmt.Fprintf(&b, "\nTotal: %d kota", len(cities))
	reply(Reply{Text: b.String(), Markdown: true})
}

func (h *Handler) list(ctx context.Context, reply ReplyFunc) {
	var b strings.Builder
	b.WriteString("📋 *Daftar Kota Tersedia*\n\n")
	total := 0
	for _, zone := range wilayah.Zones {
		cities := h.regions.CitiesByTimezone(ctx, zone)
		total += len(cities)
		if len(cities) == 0 {
			continue
		}
		fmt.Fprintf(&b, "*%s:*\n", zone)
		for _, c := range cities[:min(listPerZone, len(cities))] {
			fmt.Fprintf(&b, "• %s\n", c.Name)
		}
		if len(cities) > listPerZone {
			fmt.Fprintf(&b, "_...dan %d kota lainnya_\n", len(cities)-listPerZone)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "💡 *Total:* %d kota tersedia\n\n_Ketik /cuaca [nama kota] untuk cek cuaca_", total)
	reply(Reply{Text: b.String(), Markdown: true})
}

func (h *Handler) stats(ctx context.Context, sess *session.Session, reply ReplyFunc) {
	counts := sess.Selector.CountByTimezone(ctx)
	total := 0
	for _, zone := range wilayah.Zones {
		total += counts[zone]
	}

	var b strings.Builder
	b.WriteString("📊 *Statistik Database*\n\n")
	fmt.Fprintf(&b, "🌍 Total kota: *%d*\n\n*Per Zona Waktu:*\n", total)
	for _, zone := range wilayah.Zones {
		fmt.Fprintf(&b, "• %s (UTC+%d): %d kota\n", zone, zone.Offset(), counts[zone])
	}

	if h.activity != nil {
		if n, err := h.activity.TotalUsers(ctx); err == nil {
			fmt.Fprintf(&b, "\n👥 Total pengguna: %d\n", n)
		} else {
			h.logger.Warn("user count failed", "error", err)
		}
	}

	b.WriteString("\n*Status AI:*\n")
	if sess.Enhancer.Available() {
		fmt.Fprintf(&b, "✅ AI Enhancement: %s\n", sess.Enhancer.Status())
	} else {
		fmt.Fprintf(&b, "⚠️ AI Enhancement: %s\n", sess.Enhancer.Status())
	}
	fmt.Fprintf(&b, "\n⏱️ Uptime: %s\n\n%s", formatDuration(time.Since(h.started)), footer)
	reply(Reply{Text: b.String(), Markdown: true})
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0s"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
