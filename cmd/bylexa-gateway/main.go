// ABOUTME: Entry point for the bylexa-gateway websocket server
// ABOUTME: Commands: serve, init, token create/list/revoke, health

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/bylexa/bylexa-gateway/internal/auth"
	"github.com/bylexa/bylexa-gateway/internal/config"
	"github.com/bylexa/bylexa-gateway/internal/gateway"
	"github.com/bylexa/bylexa-gateway/internal/store"
)

// version is overridden at build time via -ldflags.
var version = "dev"

const banner = `
 _           _
| |__  _   _| | _____  ____ _
| '_ \| | | | |/ _ \ \/ / _' |
| |_) | |_| | |  __/>  < (_| |
|_.__/ \__, |_|\___/_/\_\__,_|
       |___/   gateway
`

const defaultConfig = `server:
  addr: "localhost:8765"
  # queue_size: 1024
  # send_buffer: 64
  # ping_interval: "30s"   # "0s" disables liveness probing
  # pong_timeout: "75s"

auth:
  token: "${BYLEXA_TOKEN}"
  # jwt_secret: "${BYLEXA_JWT_SECRET}"
  allow_structural: true

database:
  path: "~/.bylexa/gateway.db"

intent:
  # endpoint: "http://localhost:8000/api/process"
  timeout: "30s"

logging:
  level: "info"
  format: "text"
`

// getConfigPath returns the path to the gateway config file.
// Priority: BYLEXA_CONFIG env var > XDG_CONFIG_HOME/bylexa/gateway.yaml > ~/.config/bylexa/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BYLEXA_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "bylexa", "gateway.yaml")
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: bylexa-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                   Start the gateway server")
		fmt.Println("  init                    Write a starter config file")
		fmt.Println("  token create --label L  Issue a bearer token")
		fmt.Println("  token list              List issued tokens")
		fmt.Println("  token revoke --id ID    Revoke an issued token")
		fmt.Println("  health                  Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken(ctx, os.Args[2:])
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Listen:  ws://%s/ws\n", cfg.Server.Addr)
	if cfg.Intent.Endpoint != "" {
		green.Print("    ▶ ")
		fmt.Printf("Intent:  %s\n", cfg.Intent.Endpoint)
	}
	fmt.Println()

	logger.Info("starting bylexa-gateway",
		"config", configPath,
		"addr", cfg.Server.Addr,
	)

	opts := gateway.Options{
		Config: cfg,
		Logger: logger,
	}

	// The token store joins the verifier chain when a database is configured.
	if cfg.Database.Path != "" {
		tokens, err := store.NewSQLiteStore(expandHome(cfg.Database.Path))
		if err != nil {
			return fmt.Errorf("opening token store: %w", err)
		}
		defer tokens.Close()
		opts.Verifier = auth.NewChain(gateway.VerifierFromConfig(cfg), tokens)
	}

	gw, err := gateway.New(opts)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Wrote %s\n", configPath)
	fmt.Println("Set BYLEXA_TOKEN (or edit auth.token) before serving.")
	return nil
}

func runToken(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bylexa-gateway token <create|list|revoke>")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is not configured")
	}

	tokens, err := store.NewSQLiteStore(expandHome(cfg.Database.Path))
	if err != nil {
		return fmt.Errorf("opening token store: %w", err)
	}
	defer tokens.Close()

	switch args[0] {
	case "create":
		return runTokenCreate(ctx, tokens, args[1:])
	case "list":
		return runTokenList(ctx, tokens)
	case "revoke":
		return runTokenRevoke(ctx, tokens, args[1:])
	default:
		return fmt.Errorf("unknown token subcommand: %s", args[0])
	}
}

func runTokenCreate(ctx context.Context, tokens store.TokenStore, args []string) error {
	var label string
	var ttl time.Duration
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--label":
			i++
			if i >= len(args) {
				return fmt.Errorf("--label requires a value")
			}
			label = args[i]
		case "--ttl":
			i++
			if i >= len(args) {
				return fmt.Errorf("--ttl requires a value")
			}
			var err error
			ttl, err = time.ParseDuration(args[i])
			if err != nil {
				return fmt.Errorf("parsing --ttl: %w", err)
			}
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	if label == "" {
		return fmt.Errorf("--label flag is required")
	}

	token, plaintext, err := tokens.CreateToken(ctx, label, ttl)
	if err != nil {
		return err
	}

	fmt.Printf("Token ID: %s\n", token.ID)
	if token.ExpiresAt != nil {
		fmt.Printf("Expires:  %s\n", token.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Println()
	color.New(color.FgYellow).Println("Store this token now - it is not shown again:")
	fmt.Println(plaintext)
	return nil
}

func runTokenList(ctx context.Context, tokens store.TokenStore) error {
	issued, err := tokens.ListTokens(ctx)
	if err != nil {
		return err
	}
	if len(issued) == 0 {
		fmt.Println("No tokens issued.")
		return nil
	}

	for _, t := range issued {
		state := "active"
		if t.RevokedAt != nil {
			state = "revoked"
		} else if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
			state = "expired"
		}
		fmt.Printf("%s  %-10s  %-20s  %s\n",
			t.ID, state, t.Label, t.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func runTokenRevoke(ctx context.Context, tokens store.TokenStore, args []string) error {
	var id string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--id":
			i++
			if i >= len(args) {
				return fmt.Errorf("--id requires a value")
			}
			id = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	if id == "" {
		return fmt.Errorf("--id flag is required")
	}

	if err := tokens.RevokeToken(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Revoked %s\n", id)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.Addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway unhealthy: %d %s", resp.StatusCode, body)
	}

	color.New(color.FgGreen).Printf("healthy: %s\n", body)
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = newColorHandler(os.Stdout, level)
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output. Derived handlers from
// WithAttrs/WithGroup share one mutex and writer so concurrent records
// never interleave.
type colorHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newColorHandler(out io.Writer, level slog.Level) *colorHandler {
	return &colorHandler{
		mu:    &sync.Mutex{},
		out:   out,
		level: level,
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// qualify prefixes an attribute key with the open group path.
func (h *colorHandler) qualify(key string) string {
	if len(h.groups) == 0 {
		return key
	}
	return strings.Join(h.groups, ".") + "." + key
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first; their keys were qualified at WithAttrs time.
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + h.qualify(a.Key) + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		a.Key = h.qualify(a.Key)
		newAttrs = append(newAttrs, a)
	}
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
