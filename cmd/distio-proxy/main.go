// Command distio-proxy runs the proxy server that lets a remote controller
// reach worker processes forked on this host. Configuration is read from the
// environment (see internal/distioconfig.ProxyConfig); command-line flags
// override it where supplied.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dmitrymomot/distio/internal/distioconfig"
	"github.com/dmitrymomot/distio/internal/obslog"
	"github.com/dmitrymomot/distio/proxy"
)

// shutdownTimeout bounds how long main waits for Stop after a single
// interrupt. main reads only the first interrupt; the notification stays
// registered, so a second interrupt during that window has no effect.
const shutdownTimeout = 5 * time.Second

func main() {
	var cfg distioconfig.ProxyConfig
	distioconfig.MustLoad(&cfg)

	var (
		port                = flag.Int("port", cfg.Port, "port to listen on")
		root                = flag.String("root", cfg.Root, "directory spawn paths resolve against")
		maxConcurrentSlaves = flag.Int("maxConcurrentSlaves", cfg.MaxConcurrentSlaves, "cap on concurrently hosted workers, 0 for unlimited")
		killSlavesAfter     = flag.Duration("killSlavesAfter", cfg.KillSlavesAfter, "kill a forked worker after this long regardless of activity, 0 to disable")
		authorizedIPs       = flag.String("authorizedIps", strings.Join(cfg.AuthorizedIPs, ","), "comma-separated regexes a connecting peer's address must match")
		basicAuthUser       = flag.String("basicAuthUser", cfg.BasicAuthUser, "basic-auth username required on every connect, empty to disable")
		basicAuthPass       = flag.String("basicAuthPass", cfg.BasicAuthPass, "basic-auth password")
		passphrase          = flag.String("passphrase", cfg.Passphrase, "passphrase sealing basic-auth credentials in transit, empty for plain base64")
		logJSON             = flag.Bool("logJson", cfg.LogJSON, "emit JSON-formatted logs")
		logLevel            = flag.String("logLevel", cfg.LogLevel, "minimum log level: debug, info, warn, error")
	)
	flag.Parse()

	log := newLogger(*logJSON, *logLevel)

	opts := []proxy.Option{
		proxy.WithScriptRoot(*root),
		proxy.WithMaxConcurrentSlaves(*maxConcurrentSlaves),
		proxy.WithKillSlavesAfter(*killSlavesAfter),
		proxy.WithServerLogger(log),
	}
	if ips := splitNonEmpty(*authorizedIPs); len(ips) > 0 {
		opts = append(opts, proxy.WithAuthorizedIPs(ips))
	}
	if *basicAuthUser != "" {
		opts = append(opts, proxy.WithBasicAuth(*basicAuthUser, *basicAuthPass, *passphrase))
	}

	srv, err := proxy.New(opts...)
	if err != nil {
		log.Error("failed to build proxy server", obslog.Error(err))
		os.Exit(1)
	}

	ctx := context.Background()
	addr, err := srv.Start(ctx, fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Error("failed to start proxy server", obslog.Error(err))
		os.Exit(1)
	}
	log.Info("distio-proxy started", slog.String("addr", addr), slog.String("root", *root))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh

	log.Info("received interrupt, stopping gracefully")
	stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		log.Error("graceful stop failed", obslog.Error(err))
		os.Exit(1)
	}
}

func newLogger(json bool, level string) *slog.Logger {
	opts := []obslog.Option{obslog.WithLevel(parseLevel(level))}
	if json {
		opts = append(opts, obslog.WithJSONFormatter())
	}
	return obslog.New(opts...)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
