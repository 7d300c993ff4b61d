package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/config"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/db"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/userlog"
)

const timeLayout = "2006-01-02 15:04"

// opener returns the usage store and a function releasing it.
type opener func(ctx context.Context) (*userlog.Store, func(), error)

func main() {
	if err := newRootCmd(openFromConfig, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func openFromConfig(ctx context.Context) (*userlog.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	conn, err := db.Open(cfg.UserDBPath)
	if err != nil {
		return nil, nil, err
	}
	store := userlog.NewStore(conn, logging.New(cfg, "users"))
	if err := store.Migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close(conn) }, nil
}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "users",
		Short:        "Inspect bot usage",
		SilenceUsage: true,
	}
	root.SetOut(out)

	withStore := func(fn func(ctx context.Context, s *userlog.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s, release, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			return fn(cmd.Context(), s, args)
		}
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users, most recently seen first",
		RunE: withStore(func(ctx context.Context, s *userlog.Store, _ []string) error {
			users, err := s.Users(ctx)
			if err != nil {
				return err
			}
			return printUsers(out, users)
		}),
	}

	var topLimit int
	topCmd := &cobra.Command{
		Use:   "top",
		Short: "List the most active users",
		RunE: withStore(func(ctx context.Context, s *userlog.Store, _ []string) error {
			users, err := s.MostActive(ctx, topLimit)
			if err != nil {
				return err
			}
			return printUsers(out, users)
		}),
	}
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", 10, "number of users")

	var showLimit int
	showCmd := &cobra.Command{
		Use:   "show <user-id>",
		Long:  "Show one user. The id is a Telegram id or transport:id, e.g. whatsapp:628123.",
		Short: "Show one user and their latest commands",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, s *userlog.Store, args []string) error {
			key, err := userlog.ParseKey(args[0])
			if err != nil {
				return err
			}
			u, err := s.User(ctx, key)
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("user %s not found", key)
			}
			fmt.Fprintf(out, "%s %s (@%s)\n", key, u.Name, u.Username)
			fmt.Fprintf(out, "Pertama: %s  Terakhir: %s  Perintah: %d\n\n",
				u.FirstSeen.Format(timeLayout), u.LastSeen.Format(timeLayout), u.TotalCommands)
			acts, err := s.UserActivity(ctx, key, showLimit)
			if err != nil {
				return err
			}
			return printActivity(out, acts)
		}),
	}
	showCmd.Flags().IntVarP(&showLimit, "limit", "n", 20, "number of commands")

	var recentLimit int
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the latest commands of all users",
		RunE: withStore(func(ctx context.Context, s *userlog.Store, _ []string) error {
			acts, err := s.RecentActivity(ctx, recentLimit)
			if err != nil {
				return err
			}
			return printActivity(out, acts)
		}),
	}
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 20, "number of commands")

	commandsCmd := &cobra.Command{
		Use:   "commands",
		Short: "Count usage per command",
		RunE: withStore(func(ctx context.Context, s *userlog.Store, _ []string) error {
			stats, err := s.CommandStats(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, c := range stats {
				fmt.Fprintf(tw, "%s\t%d\n", c.Command, c.Count)
			}
			return tw.Flush()
		}),
	}

	var exportPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export all users as CSV",
		RunE: withStore(func(ctx context.Context, s *userlog.Store, _ []string) error {
			if exportPath == "" || exportPath == "-" {
				return s.ExportCSV(ctx, out)
			}
			f, err := os.Create(exportPath)
			if err != nil {
				return err
			}
			if err := s.ExportCSV(ctx, f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ Data pengguna disimpan ke %s\n", exportPath)
			return nil
		}),
	}
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "CSV file (default stdout)")

	clearCmd := &cobra.Command{
		Use:   "clear-session <user-id>",
		Short: "Forget the saved city selection of a user",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, s *userlog.Store, args []string) error {
			key, err := userlog.ParseKey(args[0])
			if err != nil {
				return err
			}
			if err := s.ClearSession(ctx, key); err != nil {
				return err
			}
			fmt.Fprintf(out, "Sesi pengguna %s dihapus\n", key)
			return nil
		}),
	}

	root.AddCommand(listCmd, topCmd, showCmd, recentCmd, commandsCmd, exportCmd, clearCmd)
	return root
}

func printUsers(out io.Writer, users []userlog.User) error {
	if len(users) == 0 {
		fmt.Fprintln(out, "Belum ada pengguna")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t@%s\t%d\t%s\n", u.Key(), u.Name, u.Username, u.TotalCommands, u.LastSeen.Format(timeLayout))
	}
	return tw.Flush()
}

func printActivity(out io.Writer, acts []userlog.Activity) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, a := range acts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Timestamp.Format(timeLayout), userlog.NewKey(a.Transport, a.UserID), a.Name, a.Command)
	}
	return tw.Flush()
}
