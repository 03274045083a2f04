package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/bookhaven/internal/config"
	bherrors "github.com/lepinkainen/bookhaven/internal/errors"
	"github.com/lepinkainen/bookhaven/internal/tui"
)

var selectBook = tui.SelectBook

// CLI represents the complete command structure for the bookhaven application
type CLI struct {
	// Global flags
	Config   string `help:"Path to config file (defaults to ./config.yaml)" type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)"`
	Output   string `short:"o" help:"Output format" enum:"text,json,yaml" default:"text"`
	User     string `short:"u" help:"User id for library and review commands" env:"BOOKHAVEN_USER"`

	// Database flags
	DBDriver string `name:"db-driver" help:"Database driver (sqlite or postgres)"`
	DSN      string `name:"dsn" help:"Database DSN, or the SQLite file path"`

	// Google Books flags
	APIKey string `name:"api-key" help:"Google Books API key"`

	Book    BookCmd    `cmd:"" help:"Look up and search books"`
	Library LibraryCmd `cmd:"" help:"Manage your reading library"`
	Review  ReviewCmd  `cmd:"" help:"Post and browse reviews"`
	Cache   CacheCmd   `cmd:"" help:"Inspect the book cache"`
	Serve   ServeCmd   `cmd:"" help:"Run the JSON HTTP API"`
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("bookhaven"),
		kong.Description("A Google Books backed catalog with a reading library and reviews."),
		kong.UsageOnError(),
	}
	return kong.New(cli, append(base, options...)...)
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(slog.LevelInfo)

	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		slog.Error("Failed to build CLI", "error", err)
		os.Exit(1)
	}

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, kctx, &cli, os.Stdout); err != nil {
		if bherrors.IsStopProcessingError(err) {
			slog.Info("Stopped", "reason", err.Error())
			return
		}
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run loads configuration, applies flag overrides and dispatches the parsed
// command with a Runtime bound for its Run method.
func run(ctx context.Context, kctx *kong.Context, cli *CLI, out io.Writer) error {
	if err := config.InitConfig(cli.Config); err != nil {
		return err
	}
	applyOverrides(cli)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	initLogging(cfg.Log.Level)

	rt := newRuntime(ctx, cfg, out, cli.Output, cli.User)
	defer rt.Close()

	return kctx.Run(rt)
}

func applyOverrides(cli *CLI) {
	// Update config based on CLI flags
	if cli.LogLevel != "" {
		viper.Set(config.KeyLogLevel, cli.LogLevel)
	}
	if cli.DBDriver != "" {
		viper.Set(config.KeyDatabaseDriver, cli.DBDriver)
	}
	if cli.DSN != "" {
		viper.Set(config.KeyDatabaseDSN, cli.DSN)
	}
	if cli.APIKey != "" {
		viper.Set(config.KeyGoogleBooksAPIKey, cli.APIKey)
	}
}

func initLogging(level slog.Level) {
	// Logs go to stderr so json/yaml output on stdout stays parseable
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}
