package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/magesignaling/relay/internal/config"
	"github.com/magesignaling/relay/internal/httpserver"
	"github.com/magesignaling/relay/internal/metrics"
	"github.com/magesignaling/relay/internal/signaling"
	"github.com/magesignaling/relay/internal/stunserver"
	"github.com/magesignaling/relay/internal/turnrest"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting signaling-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"auth_enabled", cfg.SharedSecret != "",
		"tls", cfg.TLSCertFile != "",
		"stun_enabled", cfg.STUNEnabled,
		"stun_listen_addr", cfg.STUNListenAddr,
		"ws_idle_timeout", cfg.WSIdleTimeout,
		"max_message_bytes", cfg.MaxMessageBytes,
	)
	if cfg.SharedSecret == "" {
		logger.Warn("no shared secret configured; any client can join any room")
	}

	m := metrics.New()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}
	if cfg.TLSCertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			logger.Error("failed to load TLS key pair", "err", err)
			os.Exit(2)
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
	}

	commit, built := resolveBuildInfo(buildCommit, buildTime)
	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: built})

	ws := signaling.NewWebSocketServer(cfg, logger, m)
	srv.Mux().Handle("GET /ws", ws)
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(m))

	var turnCreds *turnrest.Generator
	if len(cfg.TURNURLs) > 0 {
		turnCreds, err = turnrest.NewGenerator(cfg.TURNSecret, cfg.TURNTTL)
		if err != nil {
			logger.Error("turn credential generator", "err", err)
			os.Exit(2)
		}
	}
	srv.Mux().Handle("GET /ice", httpserver.ICEConfigHandler(logger, cfg.ICEStunURLs, cfg.TURNURLs, turnCreds))

	var stunSrv *stunserver.Server
	stunErrCh := make(chan error, 1)
	if cfg.STUNEnabled {
		stunSrv = stunserver.New(cfg.STUNListenAddr, logger, m)
		go func() {
			stunErrCh <- stunSrv.ListenAndServe()
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if stunSrv != nil {
			_ = stunSrv.Close()
		}
		if err != nil && !errors.Is(err, httpserver.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case err := <-stunErrCh:
		logger.Error("stun responder exited", "err", err)
		_ = srv.Close()
		os.Exit(1)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}
	if stunSrv != nil {
		_ = stunSrv.Close()
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}

func resolveBuildInfo(commit, built string) (string, string) {
	// Prefer ldflags-injected values (production builds) but fall back to the
	// Go build info when available (useful for `go run` / dev builds).
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if built == "" {
					built = s.Value
				}
			}
		}
	}
	return commit, built
}
