// Command tabx converts tabular files between the supported formats and
// inspects what an import would produce.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/JonMunkholm/tabx/internal/codec/all" // Register all codecs
	"github.com/JonMunkholm/tabx/internal/config"
	"github.com/JonMunkholm/tabx/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal for the CLI
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Logs go to stderr so converted output can be piped
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd(cfg).ExecuteContext(ctx)
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "tabx",
		Short: "Convert and inspect tabular data files",
		Long: `tabx reads and writes tabular data in spreadsheet, delimited,
fixed-width, CSV and HTML form.

Formats are taken from --from/--to or from the file extensions:
  .xlsx  spreadsheet (import, export)
  .xls   legacy spreadsheet (import)
  .txt   delimited text (import, export)
  .dat   fixed-width text (import, export)
  .csv   CSV (import, export)
  .html  filterable HTML page (export)

Defaults for separators, themes and the like come from the same
environment variables as the server (EXPORT_*, IMPORT_*).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newConvertCmd(cfg), newInspectCmd(cfg))
	return root
}
