package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/sampling-paradigm/internal/config"
	"github.com/nvandessel/sampling-paradigm/internal/logging"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/nvandessel/sampling-paradigm/internal/ratelimit"
	"github.com/nvandessel/sampling-paradigm/internal/store"
)

// Server wraps the MCP SDK server and exposes spgen's generators as tools.
type Server struct {
	server       *sdk.Server
	store        *store.SQLiteStore
	cfg          *config.SpgenConfig
	dataDir      string
	logger       *slog.Logger
	decisions    *logging.DecisionLogger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters

	poolMu sync.Mutex
	pools  map[float64][]payoff.Setting
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "spgen")
	Version string // Server version
	DataDir string // .spgen directory holding the run database and logs

	// Spgen supplies experiment defaults. Nil means config.Default().
	Spgen *config.SpgenConfig

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with spgen tools.
func NewServer(cfg *Config) (*Server, error) {
	runStore, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	spgenCfg := cfg.Spgen
	if spgenCfg == nil {
		spgenCfg = config.Default()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:       mcpServer,
		store:        runStore,
		cfg:          spgenCfg,
		dataDir:      cfg.DataDir,
		logger:       logging.OrDiscard(cfg.Logger),
		decisions:    logging.NewDecisionLogger(cfg.DataDir, spgenCfg.Logging.Level),
		auditLogger:  NewAuditLogger(cfg.DataDir),
		toolLimiters: ratelimit.NewToolLimiters(),
		pools:        make(map[float64][]payoff.Setting),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server starting", "transport", "stdio")
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	s.Close()
	return err
}

// Close closes the server and releases resources. Safe to call more than once.
func (s *Server) Close() error {
	s.decisions.Close()
	if err := s.auditLogger.Close(); err != nil {
		return err
	}
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// pool returns the enumerated pool for evDiff, computing it once per value.
// Empty pools are not cached.
func (s *Server) pool(evDiff float64) []payoff.Setting {
	key := payoff.Round(evDiff)

	s.poolMu.Lock()
	defer s.poolMu.Unlock()
	if p, ok := s.pools[key]; ok {
		return p
	}
	p := payoff.Enumerate(key)
	if len(p) == 0 {
		return p
	}
	s.pools[key] = p
	s.logger.Debug("pool enumerated", "ev_diff", key, "size", len(p))
	return p
}
