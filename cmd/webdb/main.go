// Command webdb serves the document store over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/its-mr-monday/WebDB/internal/catalog"
	"github.com/its-mr-monday/WebDB/internal/config"
	"github.com/its-mr-monday/WebDB/internal/identity"
	"github.com/its-mr-monday/WebDB/internal/server"
	"github.com/its-mr-monday/WebDB/internal/server/ratelimit"
	"github.com/its-mr-monday/WebDB/internal/storage"
	"github.com/its-mr-monday/WebDB/internal/tables"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "webdb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	// Environment first, explicit flags override.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	version := flag.Bool("version", false, "Print version and exit")
	flag.StringVar(&cfg.HTTP, "http", cfg.HTTP, "Address to listen on (e.g., localhost:5555, :5555)")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Data directory")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.IntVar(&cfg.LoginRatePerMin, "login-rate", cfg.LoginRatePerMin, "Login attempts allowed per minute per client IP, 0 to disable")
	flag.BoolVar(&cfg.History, "history", cfg.History, "Record every table write in a git repository in the data directory")
	flag.BoolVar(&cfg.TrustProxy, "trust-proxy", cfg.TrustProxy, "Identify clients by X-Forwarded-For / X-Real-IP (only behind a reverse proxy)")
	initData := flag.Bool("init", false, "Initialize an empty data directory and exit")
	admin := flag.String("admin", "admin", "Name of the administrator created by -init")
	describe := flag.Bool("describe", false, "Print the catalog as YAML and exit")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.Level()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	slog.SetDefault(newLogger(level))

	store, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize file store: %w", err)
	}

	if *initData {
		return runInit(ctx, store, *admin, cfg.AdminPassword)
	}

	cat, err := catalog.Load(store)
	if err != nil {
		return fmt.Errorf("failed to load catalog (run with -init to create one): %w", err)
	}
	if *describe {
		return cat.Describe(os.Stdout)
	}

	var history *storage.GitService
	if cfg.History {
		if history, err = storage.NewGitService(store.RootDir()); err != nil {
			return fmt.Errorf("failed to initialize history: %w", err)
		}
		slog.InfoContext(ctx, "History enabled", "dir", store.RootDir())
	}

	locks := &storage.TableLocks{}
	ids := identity.NewService(cat, locks)
	var limiter *ratelimit.Limiter
	if cfg.LoginRatePerMin > 0 {
		limiter = ratelimit.NewLimiter(cfg.LoginRatePerMin, time.Minute, cfg.LoginRatePerMin)
		defer limiter.Close()
	}

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}
	if err := watchCatalog(ctx, cat.Path()); err != nil {
		slog.WarnContext(ctx, "Failed to watch catalog", "err", err)
	}

	buildVersion, _, _, _ := getBuildInfo()
	httpServer := &http.Server{
		Addr: cfg.HTTP,
		Handler: server.NewRouter(&server.Services{
			Catalog:      cat,
			Identity:     ids,
			Engine:       tables.New(cat, ids, locks, history),
			LoginLimiter: limiter,
			TrustProxy:   cfg.TrustProxy,
			Version:      buildVersion,
		}),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", cfg.HTTP, "data", cfg.DataDir, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// runInit creates the catalog and the administrator. The password comes from
// WEBDB_ADMIN_PASSWORD or, on a terminal, from stdin.
func runInit(ctx context.Context, store *storage.FileStore, admin, password string) error {
	if fd := int(os.Stdin.Fd()); password == "" && term.IsTerminal(fd) { //nolint:gosec // G115: file descriptors fit in int
		fmt.Printf("Password for %s: ", admin)
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimSpace(string(b))
	}
	if password == "" {
		return errors.New("an administrator password is required, set " + config.Prefix + "_ADMIN_PASSWORD")
	}
	cat, err := identity.Bootstrap(store, admin, password)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Initialized data directory", "dir", store.RootDir(), "catalog", cat.Path(), "admin", admin)
	return nil
}

func newLogger(level slog.Level) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			if a.Key == "ip" {
				if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
					return slog.Attr{}
				}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case int64:
				skip = t == 0
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("webdb %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
