package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envVarListenAddr      = "SIGNALING_RELAY_LISTEN_ADDR"
	envVarMode            = "SIGNALING_RELAY_MODE"
	envVarLogFormat       = "SIGNALING_RELAY_LOG_FORMAT"
	envVarLogLevel        = "SIGNALING_RELAY_LOG_LEVEL"
	envVarShutdownTimeout = "SIGNALING_RELAY_SHUTDOWN_TIMEOUT"

	// Handshake / room auth.
	envVarSharedSecret   = "SHARED_SECRET"
	envVarAllowedOrigins = "ALLOWED_ORIGINS"

	// TLS for the WebSocket listener. Both must be set or neither.
	envVarTLSCertFile = "TLS_CERT_FILE"
	envVarTLSKeyFile  = "TLS_KEY_FILE"

	// WebSocket hardening knobs.
	envVarWSIdleTimeout        = "WS_IDLE_TIMEOUT"
	envVarWSPingInterval       = "WS_PING_INTERVAL"
	envVarMaxMessageBytes      = "MAX_MESSAGE_BYTES"
	envVarMaxMessagesPerSecond = "MAX_MESSAGES_PER_SECOND"

	// STUN binding responder.
	envVarSTUNEnabled    = "STUN_ENABLED"
	envVarSTUNListenAddr = "STUN_LISTEN_ADDR"

	// ICE config served to clients on /ice.
	envVarICEStunURLs = "ICE_STUN_URLS"
	envVarTURNURLs    = "TURN_URLS"
	envVarTURNSecret  = "TURN_SECRET"
	envVarTURNTTL     = "TURN_TTL"
)

const (
	DefaultListenAddr     = "127.0.0.1:8080"
	DefaultSTUNListenAddr = ":3478"
	DefaultShutdown       = 15 * time.Second

	DefaultWSIdleTimeout        = 60 * time.Second
	DefaultWSPingInterval       = 20 * time.Second
	DefaultMaxMessageBytes      = int64(64 * 1024)
	DefaultMaxMessagesPerSecond = 50

	DefaultTURNTTL = 10 * time.Minute
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type Config struct {
	ListenAddr string
	Mode       Mode

	LogFormat LogFormat
	LogLevel  slog.Level

	ShutdownTimeout time.Duration

	// SharedSecret enables handshake authentication. Empty disables it: any
	// client that names a room and user is admitted.
	SharedSecret string

	// AllowedOrigins restricts the Origin header accepted during the
	// WebSocket upgrade. Empty allows any origin (non-browser clients do not
	// send one).
	AllowedOrigins []string

	TLSCertFile string
	TLSKeyFile  string

	WSIdleTimeout        time.Duration
	WSPingInterval       time.Duration
	MaxMessageBytes      int64
	MaxMessagesPerSecond int

	STUNEnabled    bool
	STUNListenAddr string

	// ICEStunURLs and TURNURLs are advertised to clients on /ice. TURN
	// entries require TURNSecret, the secret shared with the TURN server for
	// REST credentials.
	ICEStunURLs []string
	TURNURLs    []string
	TURNSecret  string
	TURNTTL     time.Duration
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	envMode, _ := lookup(envVarMode)
	modeDefault := string(ModeDev)
	if envMode != "" {
		modeDefault = envMode
	}

	logFormatDefault := envOrDefault(lookup, envVarLogFormat, defaultLogFormatForMode(modeDefault))
	logLevelDefault := envOrDefault(lookup, envVarLogLevel, defaultLogLevelForMode(modeDefault))

	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdown)
	if err != nil {
		return Config{}, err
	}
	wsIdleTimeout, err := envDurationOrDefault(lookup, envVarWSIdleTimeout, DefaultWSIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	wsPingInterval, err := envDurationOrDefault(lookup, envVarWSPingInterval, DefaultWSPingInterval)
	if err != nil {
		return Config{}, err
	}
	maxMessageBytes, err := envIntOrDefault(lookup, envVarMaxMessageBytes, int(DefaultMaxMessageBytes))
	if err != nil {
		return Config{}, err
	}
	maxMessagesPerSecond, err := envIntOrDefault(lookup, envVarMaxMessagesPerSecond, DefaultMaxMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}
	stunEnabled, err := envBoolOrDefault(lookup, envVarSTUNEnabled, true)
	if err != nil {
		return Config{}, err
	}
	turnTTL, err := envDurationOrDefault(lookup, envVarTURNTTL, DefaultTURNTTL)
	if err != nil {
		return Config{}, err
	}

	flagSet := flag.NewFlagSet("signaling-relay", flag.ContinueOnError)
	listenAddr := flagSet.String("listen-addr", envOrDefault(lookup, envVarListenAddr, DefaultListenAddr), "TCP address for the HTTP/WebSocket listener")
	mode := flagSet.String("mode", modeDefault, "run mode: dev or prod")
	logFormat := flagSet.String("log-format", logFormatDefault, "log format: text or json")
	logLevel := flagSet.String("log-level", logLevelDefault, "log level: debug, info, warn, error")
	sharedSecret := flagSet.String("shared-secret", envOrDefault(lookup, envVarSharedSecret, ""), "shared secret for token auth; empty disables authentication")
	allowedOrigins := flagSet.String("allowed-origins", envOrDefault(lookup, envVarAllowedOrigins, ""), "comma-separated Origin allowlist for the WebSocket upgrade; empty allows all")
	tlsCertFile := flagSet.String("tls-cert-file", envOrDefault(lookup, envVarTLSCertFile, ""), "TLS certificate file; enables TLS together with -tls-key-file")
	tlsKeyFile := flagSet.String("tls-key-file", envOrDefault(lookup, envVarTLSKeyFile, ""), "TLS private key file")
	stunListenAddr := flagSet.String("stun-listen-addr", envOrDefault(lookup, envVarSTUNListenAddr, DefaultSTUNListenAddr), "UDP address for the STUN binding responder")
	stunEnabledFlag := flagSet.Bool("stun", stunEnabled, "serve STUN binding requests alongside signaling")
	iceStunURLs := flagSet.String("ice-stun-urls", envOrDefault(lookup, envVarICEStunURLs, ""), "comma-separated STUN URLs advertised to clients on /ice")
	turnURLs := flagSet.String("turn-urls", envOrDefault(lookup, envVarTURNURLs, ""), "comma-separated TURN URLs advertised to clients on /ice; requires -turn-secret")
	turnSecret := flagSet.String("turn-secret", envOrDefault(lookup, envVarTURNSecret, ""), "secret shared with the TURN server for REST credentials")

	if err := flagSet.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:           *listenAddr,
		Mode:                 Mode(strings.ToLower(strings.TrimSpace(*mode))),
		LogFormat:            LogFormat(strings.ToLower(strings.TrimSpace(*logFormat))),
		ShutdownTimeout:      shutdownTimeout,
		SharedSecret:         *sharedSecret,
		AllowedOrigins:       splitList(*allowedOrigins),
		TLSCertFile:          *tlsCertFile,
		TLSKeyFile:           *tlsKeyFile,
		WSIdleTimeout:        wsIdleTimeout,
		WSPingInterval:       wsPingInterval,
		MaxMessageBytes:      int64(maxMessageBytes),
		MaxMessagesPerSecond: maxMessagesPerSecond,
		STUNEnabled:          *stunEnabledFlag,
		STUNListenAddr:       *stunListenAddr,
		ICEStunURLs:          splitList(*iceStunURLs),
		TURNURLs:             splitList(*turnURLs),
		TURNSecret:           *turnSecret,
		TURNTTL:              turnTTL,
	}

	level, err := parseLogLevel(*logLevel)
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Mode {
	case ModeDev, ModeProd:
	default:
		return fmt.Errorf("unsupported mode %q", c.Mode)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS requires both a certificate and a key file")
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("%s must be positive", envVarMaxMessageBytes)
	}
	if c.MaxMessagesPerSecond <= 0 {
		return fmt.Errorf("%s must be positive", envVarMaxMessagesPerSecond)
	}
	if c.WSIdleTimeout <= 0 || c.WSPingInterval <= 0 {
		return fmt.Errorf("WebSocket timeouts must be positive")
	}
	if c.WSPingInterval >= c.WSIdleTimeout {
		return fmt.Errorf("%s must be shorter than %s", envVarWSPingInterval, envVarWSIdleTimeout)
	}
	if c.STUNEnabled && c.STUNListenAddr == "" {
		return fmt.Errorf("%s must not be empty when STUN is enabled", envVarSTUNListenAddr)
	}
	if len(c.TURNURLs) > 0 && c.TURNSecret == "" {
		return fmt.Errorf("%s is required when TURN URLs are advertised", envVarTURNSecret)
	}
	if c.TURNTTL <= 0 {
		return fmt.Errorf("%s must be positive", envVarTURNTTL)
	}
	return nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", s)
	}
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envBoolOrDefault(lookup func(string) (string, bool), key string, fallback bool) (bool, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
