package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/article"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/pipeline"
)

const (
	wsWriteWait   = 10 * time.Second
	wsFailureText = "Gagal membuat artikel. Silakan coba lagi."
	wsNoDataText  = "Gagal mengambil data cuaca dari BMKG. Silakan coba lagi."
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Frame is one websocket message of the live article stream.
type Frame struct {
	Type    string           `json:"type"` // event, article or error
	Event   *pipeline.Event  `json:"event,omitempty"`
	RunID   string           `json:"run_id,omitempty"`
	Article *article.Article `json:"article,omitempty"`
	Summary string           `json:"summary,omitempty"`
	Message string           `json:"message,omitempty"`
}

// handleArticleSocket builds one article and streams its progress events,
// then the article itself, and closes the connection.
func (s *Server) handleArticleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The client sends nothing; a read error means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(f Frame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(f)
	}

	req := pipeline.Request{Cities: splitCities(r.URL.Query().Get("cities"))}
	logger := s.logger.With("request_id", RequestID(r.Context()))
	logger.Info("live article started", "cities", req.Cities)

	res, err := s.deps.Builder.Build(ctx, s.deps.Sessions.New(), req, pipeline.ReporterFunc(func(e pipeline.Event) {
		if err := write(Frame{Type: "event", Event: &e}); err != nil {
			logger.Debug("event not delivered", "error", err)
			cancel()
		}
	}))

	var final Frame
	var nf *pipeline.NotFoundError
	var verr *article.ValidationError
	switch {
	case err == nil:
		final = Frame{Type: "article", RunID: res.RunID, Article: &res.Article, Summary: res.Summary}
	case errors.Is(err, context.Canceled):
		logger.Info("live article cancelled")
		return
	case errors.As(err, &nf), errors.As(err, &verr):
		final = Frame{Type: "error", Message: err.Error()}
	case errors.Is(err, pipeline.ErrNotEnoughData):
		logger.Warn("live article failed", "error", err)
		final = Frame{Type: "error", Message: wsNoDataText}
	default:
		logger.Error("live article failed", "error", err)
		final = Frame{Type: "error", Message: wsFailureText}
	}

	if err := write(final); err != nil {
		logger.Debug("final frame not delivered", "error", err)
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// splitCities parses "Bandung, Kota Denpasar" into names.
func splitCities(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
