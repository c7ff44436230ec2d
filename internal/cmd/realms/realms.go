// Package realms parses realm tree command configuration and dispatches the
// administrative sub-commands.
package realms

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/realmtree/internal/platform/cmd"
	apperrors "github.com/louisbranch/realmtree/internal/platform/errors"
	"github.com/louisbranch/realmtree/internal/services/realms/app"
	realmsqlite "github.com/louisbranch/realmtree/internal/services/realms/storage/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/grpc/status"
)

// Config holds realms command configuration. Env names carry the
// REALMTREE_ prefix.
type Config struct {
	DBPath        string        `env:"DB_PATH"         envDefault:"data/realms.db"`
	Timeout       time.Duration `env:"TIMEOUT"         envDefault:"1m"`
	IDSecret      string        `env:"ID_SECRET"`
	RetryMaxTries uint          `env:"RETRY_MAX_TRIES" envDefault:"5"`
	Locale        string        `env:"LOCALE"          envDefault:"en-US"`
	JSON          bool          `env:"JSON"`
	Metrics       bool          `env:"METRICS"`

	// Args holds the sub-command and its arguments.
	Args []string `env:"-"`
}

// ErrUsage marks invalid command lines.
var ErrUsage = errors.New("usage")

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the realm SQLite database")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Overall command timeout")
	fs.StringVar(&cfg.IDSecret, "id-secret", cfg.IDSecret, "Secret keying opaque identifiers")
	fs.UintVar(&cfg.RetryMaxTries, "retry-max-tries", cfg.RetryMaxTries, "Attempts for mutations that hit a write conflict")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Locale for error messages")
	fs.BoolVar(&cfg.JSON, "json", cfg.JSON, "Print results as JSON")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "Print collected metrics after the command")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Args = fs.Args()
	return cfg, nil
}

// Run executes one sub-command against the configured database.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if len(cfg.Args) == 0 {
		writeUsage(errOut)
		return fmt.Errorf("%w: command is required", ErrUsage)
	}
	name, args := cfg.Args[0], cfg.Args[1:]
	cmd, ok := commands[name]
	if !ok {
		writeUsage(errOut)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	if len(args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(args) > cmd.maxArgs) {
		fmt.Fprintf(errOut, "usage: realms %s %s\n", name, cmd.usage)
		return fmt.Errorf("%w: %s takes %s", ErrUsage, name, cmd.usage)
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRealms, func(ctx context.Context) error {
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		if cmd.offline {
			return reportError(cmd.run(ctx, &cli{out: out, json: cfg.JSON, locale: cfg.Locale}, args), cfg, errOut)
		}
		c, closeFn, err := newCLI(cfg, out, errOut)
		if err != nil {
			return err
		}
		defer closeFn()

		err = cmd.run(ctx, c, args)
		if cfg.Metrics {
			if metricsErr := c.writeMetrics(); metricsErr != nil && err == nil {
				err = metricsErr
			}
		}
		return reportError(err, cfg, errOut)
	})
}

// reportError prints the localized text of domain errors before returning
// them to the caller. JSON mode prints the gRPC status a remote client would
// receive for the same error.
func reportError(err error, cfg Config, errOut io.Writer) error {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		return err
	}
	if !cfg.JSON {
		fmt.Fprintln(errOut, appErr.LocalizedMessage(cfg.Locale))
		return err
	}
	view := errorView{Code: string(appErr.Code), Message: appErr.LocalizedMessage(cfg.Locale)}
	if st, ok := status.FromError(appErr.ToGRPCStatus(cfg.Locale)); ok {
		view.Status = st.Code().String()
	}
	enc := json.NewEncoder(errOut)
	if encErr := enc.Encode(view); encErr != nil {
		log.Printf("encode error output: %v", encErr)
	}
	return err
}

type errorView struct {
	Code    string `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// cli carries the per-invocation service and output settings.
type cli struct {
	svc      *app.Service
	registry *prometheus.Registry
	out      io.Writer
	json     bool
	locale   string
}

func newCLI(cfg Config, out io.Writer, errOut io.Writer) (*cli, func(), error) {
	path := strings.TrimSpace(cfg.DBPath)
	if path == "" {
		return nil, nil, fmt.Errorf("db path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	metrics, err := app.NewMetrics(registry)
	if err != nil {
		return nil, nil, err
	}
	store, err := realmsqlite.Open(path, realmsqlite.WithKeySecret(cfg.IDSecret), realmsqlite.WithObserver(metrics))
	if err != nil {
		return nil, nil, fmt.Errorf("open realm store: %w", err)
	}
	svc := app.NewService(store,
		app.WithLogger(log.New(errOut, log.Prefix(), log.Flags())),
		app.WithMetrics(metrics),
		app.WithRetryPolicy(app.RetryPolicy{MaxTries: cfg.RetryMaxTries}),
	)
	closeFn := func() {
		if err := store.Close(); err != nil {
			log.Printf("close realm store: %v", err)
		}
	}
	return &cli{svc: svc, registry: registry, out: out, json: cfg.JSON, locale: cfg.Locale}, closeFn, nil
}

func (c *cli) writeMetrics() error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(c.out, family); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func writeUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "usage: realms [flags] <command> [args]")
	fmt.Fprintln(w, "commands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].usage)
	}
}
