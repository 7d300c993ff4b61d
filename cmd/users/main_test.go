package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/db"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/userlog"
)

func seededStore(t *testing.T) *userlog.Store {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	s := userlog.NewStore(conn, nil)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	for _, a := range []struct {
		key     userlog.Key
		user    string
		name    string
		command string
	}{
		{userlog.NewKey("telegram", 101), "sari", "Sari Dewi", "/start"},
		{userlog.NewKey("telegram", 101), "sari", "Sari Dewi", "/artikel"},
		{userlog.NewKey("telegram", 101), "sari", "Sari Dewi", "/artikel"},
		{userlog.NewKey("whatsapp", 628123), "", "Budi", "/cuaca"},
	} {
		if err := s.LogActivity(ctx, a.key, a.user, a.name, a.command); err != nil {
			t.Fatalf("LogActivity: %v", err)
		}
	}
	if err := s.SaveSession(ctx, userlog.NewKey("telegram", 101), []string{"Bandung"}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	return s
}

func runCmd(t *testing.T, store *userlog.Store, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	open := func(context.Context) (*userlog.Store, func(), error) {
		return store, func() {}, nil
	}
	cmd := newRootCmd(open, &out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	store := seededStore(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"list", []string{"list"}, []string{"Sari Dewi", "whatsapp:628123"}},
		{"top", []string{"top", "-n", "1"}, []string{"telegram:101", "Sari Dewi"}},
		{"show", []string{"show", "101"}, []string{"Sari Dewi (@sari)", "Perintah: 3", "/artikel", "/start"}},
		{"show whatsapp", []string{"show", "whatsapp:628123"}, []string{"whatsapp:628123 Budi", "/cuaca"}},
		{"recent", []string{"recent", "-n", "2"}, []string{"/cuaca", "whatsapp:628123"}},
		{"commands", []string{"commands"}, []string{"/artikel", "/cuaca", "/start"}},
		{"export stdout", []string{"export"}, []string{"Transport,User ID,Username,Name", "telegram,101,sari,Sari Dewi", "whatsapp,628123,,Budi"}},
		{"clear session", []string{"clear-session", "101"}, []string{"Sesi pengguna telegram:101 dihapus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, store, tt.args...)
			if err != nil {
				t.Fatalf("%v: %v\n%s", tt.args, err, out)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}

	var names []string
	found, err := store.LoadSession(context.Background(), userlog.NewKey("telegram", 101), &names)
	if err != nil || found {
		t.Errorf("session should be cleared, found=%v err=%v", found, err)
	}
}

func TestTopOrder(t *testing.T) {
	out, err := runCmd(t, seededStore(t), "top")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Index(out, "Sari Dewi") > strings.Index(out, "Budi") {
		t.Errorf("most active user should come first:\n%s", out)
	}
}

func TestExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	out, err := runCmd(t, seededStore(t), "export", "-o", path)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output = %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Errorf("csv has %d lines, want header + 2 users:\n%s", lines, data)
	}
}

func TestCommandErrors(t *testing.T) {
	store := seededStore(t)
	for _, args := range [][]string{
		{"show", "abc"},
		{"show", "999"},
		{"show", "whatsapp:101"},
		{"clear-session"},
	} {
		if _, err := runCmd(t, store, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}
