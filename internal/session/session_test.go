package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/db"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/gemini"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/ordered"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/userlog"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah/wilayahtest"
)

func newUserlog(t *testing.T) *userlog.Store {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	s := userlog.NewStore(conn, nil)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func telegramUser(id int64) userlog.Key { return userlog.NewKey("telegram", id) }

func TestManager_GetReturnsSameSession(t *testing.T) {
	m := NewManager(wilayahtest.Seeded(t), nil, nil, nil)
	ctx := context.Background()

	a := m.Get(ctx, telegramUser(1))
	if m.Get(ctx, telegramUser(1)) != a {
		t.Error("Get returned a different session for the same user")
	}
	if m.Get(ctx, telegramUser(2)) == a {
		t.Error("users share a session")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	if m.New() == a || m.Len() != 2 {
		t.Error("New() must not register a session")
	}
}

func TestManager_PersistsSelection(t *testing.T) {
	regions := wilayahtest.Seeded(t)
	logs := newUserlog(t)
	ctx := context.Background()

	m := NewManager(regions, nil, logs, nil)
	s := m.Get(ctx, telegramUser(42))
	if !s.Selector.AddSpecific(ctx, "Sorong") || !s.Selector.AddSpecific(ctx, "Bandung") {
		t.Fatal("seeded cities not found")
	}
	m.Save(ctx, s)

	restarted := NewManager(regions, nil, logs, nil)
	got := restarted.Get(ctx, telegramUser(42)).Selector.Names()
	if fmt.Sprint(got) != "[Sorong Bandung]" {
		t.Errorf("restored names = %v", got)
	}
}

func TestManager_TransportsDoNotShareSessions(t *testing.T) {
	regions := wilayahtest.Seeded(t)
	logs := newUserlog(t)
	ctx := context.Background()

	m := NewManager(regions, nil, logs, nil)
	tg := m.Get(ctx, userlog.NewKey("telegram", 628123))
	wa := m.Get(ctx, userlog.NewKey("whatsapp", 628123))
	if tg == wa {
		t.Fatal("same numeric id on two transports shares a session")
	}
	tg.Selector.AddSpecific(ctx, "Sorong")
	wa.Selector.AddSpecific(ctx, "Denpasar")
	m.Save(ctx, tg)
	m.Save(ctx, wa)

	restarted := NewManager(regions, nil, logs, nil)
	if got := restarted.Get(ctx, userlog.NewKey("telegram", 628123)).Selector.Names(); fmt.Sprint(got) != "[Sorong]" {
		t.Errorf("telegram selection = %v", got)
	}
	if got := restarted.Get(ctx, userlog.NewKey("whatsapp", 628123)).Selector.Names(); fmt.Sprint(got) != "[Denpasar]" {
		t.Errorf("whatsapp selection = %v", got)
	}
}

type exhausted struct{ calls int }

func (e *exhausted) Generate(context.Context, string) (string, error) {
	e.calls++
	return "", fmt.Errorf("%w: %s", gemini.ErrExhausted, gemini.ExhaustedReason(1, 1))
}

func TestManager_LatchIsPerSession(t *testing.T) {
	gen := &exhausted{}
	m := NewManager(wilayahtest.Seeded(t), gen, nil, nil)
	ctx := context.Background()

	report := ordered.New[string, weather.Observation]()
	report.Set("Sorong", weather.Observation{Weather: "Hujan"})

	first := m.Get(ctx, telegramUser(1))
	first.Enhancer.Enhance(ctx, report)
	if first.Enhancer.Available() {
		t.Fatal("first session should be latched")
	}
	if !m.Get(ctx, telegramUser(2)).Enhancer.Available() {
		t.Error("latch of one user disabled AI for another")
	}
}

func TestManager_NoGenerator(t *testing.T) {
	m := NewManager(wilayahtest.Seeded(t), nil, nil, nil)
	if m.Get(context.Background(), telegramUser(1)).Enhancer.Available() {
		t.Error("enhancer available without a generator")
	}
}
