package httpapi

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
)

//go:embed templates/dashboard.html
var dashboardHTML string

var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardHTML))

type zoneCount struct {
	Zone  wilayah.Zone
	Count int
}

type dashboardData struct {
	BotName     string
	WebhookURL  string
	Telegram    bool
	WhatsApp    bool
	LiveArticle bool
	Zones       []zoneCount
	Total       int
	Users       *int
	AI          string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats(r)
	if err != nil {
		s.logger.Error("dashboard stats failed", "error", err)
	}

	data := dashboardData{
		BotName:     s.opts.BotName,
		WebhookURL:  s.opts.WebhookURL,
		Telegram:    s.deps.Telegram != nil,
		WhatsApp:    s.deps.WhatsApp != nil,
		LiveArticle: s.deps.Builder != nil && s.deps.Sessions != nil,
		Users:       st.Users,
		AI:          s.opts.AIStatus,
	}
	for _, z := range wilayah.Zones {
		n := st.Regions.ByZone[z]
		data.Zones = append(data.Zones, zoneCount{Zone: z, Count: n})
		data.Total += n
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		s.logger.Error("render dashboard", "error", err)
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
