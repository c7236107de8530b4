package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chriscow/memora/internal/config"
	"github.com/chriscow/memora/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	_ "github.com/chriscow/memora/pkg/plugin/console" // Import to register console plugins
	_ "github.com/chriscow/memora/pkg/plugin/espeak"  // Import to register espeak plugin
	_ "github.com/chriscow/memora/pkg/plugin/fake"    // Import to register fake plugins
	_ "github.com/chriscow/memora/pkg/plugin/openai"  // Import to register OpenAI plugins
)

const serviceName = "github.com/chriscow/memora"

// app carries what the subcommands share once the root has loaded config.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "memora",
		Short: "Memora - a voice reminder assistant in Brazilian Portuguese",
		Long: `memora listens for spoken commands in Brazilian Portuguese, fills in
reminders over a short dialogue, and reads them back when they come due.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = setupLogger(cfg.Log, cmd.ErrOrStderr())
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default memora.yaml in . or the user config dir)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text, json, otel")
	pf.String("store", "", "Reminder store: memory, sqlite, http")
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = a.v.BindPFlag("store.backend", pf.Lookup("store"))

	root.AddCommand(
		newVersionCmd(),
		newRunCmd(a),
		newChatCmd(a),
		newParseCmd(a),
		newNormalizeCmd(a),
		newRemindersCmd(a),
		newClipsCmd(a),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
		},
	}
}

// setupLogger builds the process logger and makes it the default. The otel
// format hands records to the global OpenTelemetry logger provider.
func setupLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{}
	switch strings.ToLower(cfg.Level) {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "otel":
		handler = otelslog.NewHandler(serviceName)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
