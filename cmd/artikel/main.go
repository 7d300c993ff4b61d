package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/app"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/article"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/config"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/pipeline"
)

const banner = `
    _         _   _ _        _
   / \   _ __| |_(_) | _____| |
  / _ \ | '__| __| | |/ / _ \ |
 / ___ \| |  | |_| |   <  __/ |
/_/   \_\_|   \__|_|_|\_\___|_|

  ____
 / ___|   _  __ _  ___ __ _
| |  | | | |/ _' |/ __/ _' |
| |__| |_| | (_| | (_| (_| |
 \____\__,_|\__,_|\___\__,_|

BMKG Weather Article Generator
`

type options struct {
	cities       []string
	noAI         bool
	sendTelegram bool
	sendWhatsApp bool
	output       string
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:   "artikel [kota...]",
		Short: "Generate one weather article from BMKG forecasts",
		Long: "Selects four cities (or the ones given), fetches their forecasts from BMKG,\n" +
			"renders the article, optionally improves the headline with AI, prints it and\n" +
			"saves it to OUTPUT_FILE.",
		Example:      "  artikel\n  artikel Bandung Denpasar\n  artikel --cities \"Kota Bandung,Sorong\" --send-telegram",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.cities = append(opts.cities, args...)
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&opts.cities, "cities", "c", nil, "comma-separated city names (max 4)")
	f.BoolVar(&opts.noAI, "no-ai", false, "skip AI headline enhancement")
	f.BoolVar(&opts.sendTelegram, "send-telegram", false, "broadcast the article to TELEGRAM_CHAT_ID")
	f.BoolVar(&opts.sendWhatsApp, "send-whatsapp", false, "send the article to WHATSAPP_TARGET_NUMBER")
	f.StringVarP(&opts.output, "output", "o", "", "output file (default OUTPUT_FILE)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	fmt.Print(banner)
	fmt.Println(strings.Repeat("-", 60))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if opts.noAI {
		cfg.UseAI = false
	}
	if opts.output != "" {
		cfg.OutputFile = opts.output
	}
	if opts.sendTelegram {
		if err := cfg.RequireTelegram(); err != nil {
			return err
		}
	}
	if opts.sendWhatsApp && (!cfg.HasWhatsApp() || cfg.WhatsAppTargetNumber == "") {
		return errors.New("missing required config: [WA_PHONE_ID WA_TOKEN WA_VERIFY_TOKEN WHATSAPP_TARGET_NUMBER]")
	}

	logger := logging.New(cfg, "artikel")
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("generating article", "cities", opts.cities, "ai", a.AIStatus(), "target_hour", cfg.TargetHour)

	sess := a.Sessions.New()
	res, err := a.Pipeline.Build(ctx, sess, pipeline.Request{Cities: opts.cities}, pipeline.ReporterFunc(func(e pipeline.Event) {
		logger.Info(e.Message, "stage", e.Stage, "run_id", e.RunID)
	}))
	if err != nil {
		return err
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Println("Data cuaca:")
	fmt.Print(res.Summary)
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println(res.Article.Title)
	fmt.Println()
	fmt.Println(res.Article.Body)
	fmt.Println(strings.Repeat("-", 60))

	if err := os.WriteFile(cfg.OutputFile, []byte(article.Compose(res.Article.Title, res.Article.Body)), 0o644); err != nil {
		return fmt.Errorf("save article: %w", err)
	}
	logger.Info("article saved", "file", cfg.OutputFile, "ai_title", res.Article.AIEnhanced)

	var errs []error
	if opts.sendTelegram {
		if err := a.Telegram.Broadcast(res.Article.Title, res.Article.Body); err != nil {
			errs = append(errs, err)
		} else {
			logger.Info("sent to telegram", "chat_id", cfg.TelegramChatID)
		}
	}
	if opts.sendWhatsApp {
		if err := a.WhatsApp.Broadcast(ctx, cfg.WhatsAppTargetNumber, res.Article.Title, res.Article.Body); err != nil {
			errs = append(errs, err)
		} else {
			logger.Info("sent to whatsapp", "to", cfg.WhatsAppTargetNumber)
		}
	}
	return errors.Join(errs...)
}
