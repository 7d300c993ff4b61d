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
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
)

// opener returns the region store and a function releasing it.
type opener func(ctx context.Context) (*wilayah.Store, func(), error)

func main() {
	if err := newRootCmd(openFromConfig, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func openFromConfig(ctx context.Context) (*wilayah.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	conn, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	store := wilayah.NewStore(conn, logging.New(cfg, "wilayah"))
	if err := store.Migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close(conn) }, nil
}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "wilayah",
		Short:        "Manage the Indonesian region database",
		SilenceUsage: true,
	}
	root.SetOut(out)

	// withStore opens the store for the duration of one subcommand.
	withStore := func(fn func(ctx context.Context, s *wilayah.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s, release, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			return fn(cmd.Context(), s, args)
		}
	}

	var dumpPath string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import a wilayah SQL dump (rows already present are kept)",
		RunE: withStore(func(ctx context.Context, s *wilayah.Store, _ []string) error {
			path := dumpPath
			if path == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				path = cfg.SQLFile
			}
			res, err := s.ImportFile(ctx, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ Import selesai: %d baris dibaca, %d baru, %d dilewati\n", res.Parsed, res.Inserted, res.Skipped)
			return nil
		}),
	}
	importCmd.Flags().StringVarP(&dumpPath, "file", "f", "", "dump file (default SQL_FILE)")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show row counts per level and cities per timezone",
		RunE: withStore(func(ctx context.Context, s *wilayah.Store, _ []string) error {
			st, err := s.Stats(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Total\t%d\n", st.Total)
			fmt.Fprintf(tw, "Provinsi\t%d\n", st.Provinces)
			fmt.Fprintf(tw, "Kota/Kabupaten\t%d\n", st.Cities)
			fmt.Fprintf(tw, "Kota\t%d\n", st.Kota)
			fmt.Fprintf(tw, "Kecamatan\t%d\n", st.Districts)
			fmt.Fprintf(tw, "Desa/Kelurahan\t%d\n", st.Villages)
			for _, z := range wilayah.Zones {
				fmt.Fprintf(tw, "Kota %s\t%d\n", z, st.ByZone[z])
			}
			return tw.Flush()
		}),
	}

	var searchLimit int
	searchCmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search cities and regencies by name",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, s *wilayah.Store, args []string) error {
			cities := s.CitiesByKeyword(ctx, args[0], searchLimit)
			if len(cities) == 0 {
				fmt.Fprintf(out, "Tidak ada kota yang cocok dengan '%s'\n", args[0])
				return nil
			}
			return printCities(out, cities)
		}),
	}
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum results")

	var listZone string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List KOTA cities of one timezone, or of all three",
		RunE: withStore(func(ctx context.Context, s *wilayah.Store, _ []string) error {
			zones, err := parseZones(listZone)
			if err != nil {
				return err
			}
			for _, z := range zones {
				cities := s.CitiesByTimezone(ctx, z)
				fmt.Fprintf(out, "== %s (%d kota) ==\n", z, len(cities))
				if err := printCities(out, cities); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	listCmd.Flags().StringVarP(&listZone, "zone", "z", "", "WIB, WITA or WIT")

	var (
		randomCount int
		randomZone  string
	)
	randomCmd := &cobra.Command{
		Use:   "random",
		Short: "Pick random KOTA cities",
		RunE: withStore(func(ctx context.Context, s *wilayah.Store, _ []string) error {
			var zone wilayah.Zone
			if randomZone != "" {
				if zone = wilayah.ParseZone(randomZone); zone == "" {
					return fmt.Errorf("unknown zone %q (use WIB, WITA or WIT)", randomZone)
				}
			}
			return printCities(out, s.RandomCities(ctx, randomCount, zone))
		}),
	}
	randomCmd.Flags().IntVarP(&randomCount, "count", "n", 4, "number of cities")
	randomCmd.Flags().StringVarP(&randomZone, "zone", "z", "", "WIB, WITA or WIT")

	provincesCmd := &cobra.Command{
		Use:   "provinces",
		Short: "List provinces with their timezone",
		RunE: withStore(func(ctx context.Context, s *wilayah.Store, _ []string) error {
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, p := range s.AllProvinces(ctx) {
				zone, _ := wilayah.TimezoneFor(p.Code)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Code, p.Name, zone)
			}
			return tw.Flush()
		}),
	}

	root.AddCommand(importCmd, statsCmd, searchCmd, listCmd, randomCmd, provincesCmd)
	return root
}

func parseZones(raw string) ([]wilayah.Zone, error) {
	if raw == "" {
		return wilayah.Zones, nil
	}
	z := wilayah.ParseZone(raw)
	if z == "" {
		return nil, fmt.Errorf("unknown zone %q (use WIB, WITA or WIT)", raw)
	}
	return []wilayah.Zone{z}, nil
}

func printCities(out io.Writer, cities []wilayah.City) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range cities {
		fmt.Fprintf(tw, "%s\t%s\tprov %s\t%s (UTC+%d)\n", c.Name, c.Code, c.Province(), c.Timezone, c.TimezoneOffset)
	}
	return tw.Flush()
}
