package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/sampling-paradigm/internal/balance"
	"github.com/nvandessel/sampling-paradigm/internal/export"
	"github.com/nvandessel/sampling-paradigm/internal/pathutil"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/nvandessel/sampling-paradigm/internal/ratelimit"
	"github.com/nvandessel/sampling-paradigm/internal/store"
)

const (
	defaultEnumerateLimit = 50
	defaultRunsLimit      = 20

	runURIPrefix = "spgen://runs/"
)

// checkEVDiff rejects expected value differences no pool can be built for.
func checkEVDiff(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("ev_diff must be a finite non-negative number, got %v", v)
	}
	return nil
}

// registerTools registers all spgen MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spgen_enumerate",
		Description: "List payoff settings whose two sides differ in expected value by exactly ev_diff",
	}, s.handleEnumerate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spgen_schedule",
		Description: "Draw a balanced trial schedule so every stimulus class (magnitude on a side) is shown at least n_trials/18 times",
	}, s.handleSchedule)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spgen_reward_lists",
		Description: "Convert a payoff setting to its two 10-outcome reward lists, or reward lists back to a setting",
	}, s.handleRewardLists)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spgen_coverage",
		Description: "Count how many trials of a stored run show each stimulus class",
	}, s.handleCoverage)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spgen_runs",
		Description: "List stored schedule runs, newest first",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spgen_export",
		Description: "Write a settings pool or a stored run as an Arrow IPC file under .spgen/exports",
	}, s.handleExport)
}

// registerResources registers stored runs as readable resources.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: runURIPrefix + "{id}",
		Name:        "spgen-run",
		Description: "A stored schedule run with its parameters and trials, as JSON.",
		MIMEType:    "application/json",
	}, s.handleRunResource)
}

func (s *Server) handleRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, runURIPrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, runURIPrefix)
	if id == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode run: %w", err)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

func (s *Server) handleEnumerate(ctx context.Context, req *sdk.CallToolRequest, args EnumerateInput) (_ *sdk.CallToolResult, _ EnumerateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spgen_enumerate", start, retErr, map[string]any{
			"ev_diff": args.EVDiff, "offset": args.Offset, "limit": args.Limit,
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "spgen_enumerate"); err != nil {
		return nil, EnumerateOutput{}, err
	}
	if args.Offset < 0 || args.Limit < 0 {
		return nil, EnumerateOutput{}, fmt.Errorf("offset and limit must be non-negative")
	}

	evDiff := s.cfg.Experiment.EVDiff
	if args.EVDiff != nil {
		evDiff = *args.EVDiff
	}
	if err := checkEVDiff(evDiff); err != nil {
		return nil, EnumerateOutput{}, err
	}
	limit := args.Limit
	if limit == 0 {
		limit = defaultEnumerateLimit
	}

	pool := s.pool(evDiff)
	from := min(args.Offset, len(pool))
	to := min(from+limit, len(pool))

	return nil, EnumerateOutput{
		EVDiff:   payoff.Round(evDiff),
		Total:    len(pool),
		Settings: viewsOf(pool[from:to]),
	}, nil
}

func (s *Server) handleSchedule(ctx context.Context, req *sdk.CallToolRequest, args ScheduleInput) (_ *sdk.CallToolResult, _ ScheduleOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spgen_schedule", start, retErr, map[string]any{
			"ev_diff": args.EVDiff, "n_trials": args.NTrials, "cutoff_p": args.CutoffP,
			"seed": args.Seed, "save": args.Save,
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "spgen_schedule"); err != nil {
		return nil, ScheduleOutput{}, err
	}

	exp := s.cfg.Experiment
	if args.EVDiff != nil {
		exp.EVDiff = *args.EVDiff
	}
	if args.NTrials != nil {
		exp.NTrials = *args.NTrials
	}
	if args.CutoffP != nil {
		exp.CutoffP = *args.CutoffP
	}
	if args.Seed != nil {
		exp.Seed = args.Seed
	}

	if err := checkEVDiff(exp.EVDiff); err != nil {
		return nil, ScheduleOutput{}, err
	}
	pool := s.pool(exp.EVDiff)
	sampler := balance.NewSampler(s.logger, s.decisions)
	res, err := sampler.Sample(pool, balance.Options{
		NTrials: exp.NTrials,
		Cutoff:  exp.CutoffP,
		Seed:    exp.Seed,
	})
	if err != nil {
		return nil, ScheduleOutput{}, err
	}

	cov := balance.CoverageOf(res.Trials, exp.CutoffP)
	out := ScheduleOutput{
		Seed:      res.Seed,
		PerClass:  res.PerClass,
		Remainder: res.Remainder,
		Trials:    viewsOf(res.Trials),
		Coverage:  cov.Map(),
		Stats:     cov.Stats(),
	}

	if args.Save {
		run := &store.Run{
			EVDiff:    payoff.Round(exp.EVDiff),
			NTrials:   exp.NTrials,
			Cutoff:    exp.CutoffP,
			Seed:      res.Seed,
			PerClass:  res.PerClass,
			Remainder: res.Remainder,
			PoolSize:  len(pool),
			Trials:    res.Trials,
		}
		id, err := s.store.SaveRun(ctx, run)
		if err != nil {
			return nil, ScheduleOutput{}, fmt.Errorf("failed to save run: %w", err)
		}
		out.RunID = id
	}

	return nil, out, nil
}

func (s *Server) handleRewardLists(ctx context.Context, req *sdk.CallToolRequest, args RewardListsInput) (_ *sdk.CallToolResult, _ RewardListsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spgen_reward_lists", start, retErr, map[string]any{
			"setting_id": args.SettingID, "left": args.Left, "right": args.Right,
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "spgen_reward_lists"); err != nil {
		return nil, RewardListsOutput{}, err
	}

	var setting payoff.Setting
	switch {
	case args.SettingID != nil && (args.Left != nil || args.Right != nil):
		return nil, RewardListsOutput{}, fmt.Errorf("give either setting_id or reward lists, not both")
	case args.SettingID != nil:
		var err error
		if setting, err = payoff.ByID(*args.SettingID); err != nil {
			return nil, RewardListsOutput{}, err
		}
	case args.Left != nil && args.Right != nil:
		var err error
		if setting, err = payoff.FromRewardLists(payoff.RewardLists{args.Left, args.Right}); err != nil {
			return nil, RewardListsOutput{}, err
		}
	default:
		return nil, RewardListsOutput{}, fmt.Errorf("setting_id or both left and right reward lists are required")
	}

	lists, err := payoff.ToRewardLists(setting)
	if err != nil {
		return nil, RewardListsOutput{}, err
	}
	return nil, RewardListsOutput{
		Setting: viewOf(setting),
		Left:    lists[payoff.SideLeft],
		Right:   lists[payoff.SideRight],
	}, nil
}

func (s *Server) handleCoverage(ctx context.Context, req *sdk.CallToolRequest, args CoverageInput) (_ *sdk.CallToolResult, _ CoverageOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spgen_coverage", start, retErr, map[string]any{
			"run_id": args.RunID, "cutoff_p": args.CutoffP,
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "spgen_coverage"); err != nil {
		return nil, CoverageOutput{}, err
	}

	run, err := s.store.GetRun(ctx, args.RunID)
	if err != nil {
		return nil, CoverageOutput{}, err
	}
	cutoff := run.Cutoff
	if args.CutoffP != nil {
		cutoff = *args.CutoffP
	}

	cov := balance.CoverageOf(run.Trials, cutoff)
	return nil, CoverageOutput{
		RunID:    run.ID,
		CutoffP:  cutoff,
		Coverage: cov.Map(),
		Stats:    cov.Stats(),
	}, nil
}

func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spgen_runs", start, retErr, map[string]any{"limit": args.Limit})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "spgen_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, RunsOutput{}, err
	}

	items := make([]RunListItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, RunListItem{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
			EVDiff:    r.EVDiff,
			NTrials:   r.NTrials,
			CutoffP:   r.Cutoff,
			Seed:      r.Seed,
			Condition: r.Condition.String(),
		})
	}
	return nil, RunsOutput{Runs: items, Count: len(items)}, nil
}

func viewOf(s payoff.Setting) SettingView {
	return SettingView{
		ID:         s.ID,
		LeftMag1:   s.Left.Mag1,
		LeftProb1:  s.Left.Prob1,
		LeftMag2:   s.Left.Mag2,
		LeftProb2:  s.Left.Prob2,
		RightMag1:  s.Right.Mag1,
		RightProb1: s.Right.Prob1,
		RightMag2:  s.Right.Mag2,
		RightProb2: s.Right.Prob2,
		EVDiff:     s.EVDiff(),
	}
}

func viewsOf(settings []payoff.Setting) []SettingView {
	out := make([]SettingView, len(settings))
	for i, s := range settings {
		out[i] = viewOf(s)
	}
	return out
}

func (s *Server) handleExport(ctx context.Context, req *sdk.CallToolRequest, args ExportInput) (_ *sdk.CallToolResult, _ ExportOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spgen_export", start, retErr, map[string]any{
			"name": args.Name, "run_id": args.RunID, "ev_diff": args.EVDiff,
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "spgen_export"); err != nil {
		return nil, ExportOutput{}, err
	}
	if args.Name == "" {
		return nil, ExportOutput{}, fmt.Errorf("name is required")
	}
	if args.Name != filepath.Base(args.Name) || args.Name == ".." {
		return nil, ExportOutput{}, fmt.Errorf("name must be a plain file name, got %q", args.Name)
	}
	if args.RunID != "" && args.EVDiff != nil {
		return nil, ExportOutput{}, fmt.Errorf("give either run_id or ev_diff, not both")
	}

	name := args.Name
	if filepath.Ext(name) != ".arrow" {
		name += ".arrow"
	}
	dir := pathutil.ExportDir(s.dataDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, ExportOutput{}, fmt.Errorf("failed to create exports directory: %w", err)
	}
	path, err := pathutil.Confine(filepath.Join(dir, name), dir)
	if err != nil {
		return nil, ExportOutput{}, err
	}

	var (
		settings []payoff.Setting
		meta     map[string]string
	)
	if args.RunID != "" {
		run, err := s.store.GetRun(ctx, args.RunID)
		if err != nil {
			return nil, ExportOutput{}, err
		}
		settings, meta = run.Trials, export.RunMetadata(run)
	} else {
		evDiff := s.cfg.Experiment.EVDiff
		if args.EVDiff != nil {
			evDiff = *args.EVDiff
		}
		if err := checkEVDiff(evDiff); err != nil {
			return nil, ExportOutput{}, err
		}
		settings, meta = s.pool(evDiff), export.PoolMetadata(evDiff)
	}

	if err := export.WriteFile(path, settings, meta); err != nil {
		return nil, ExportOutput{}, err
	}
	s.logger.Info("settings exported", "path", path, "rows", len(settings))
	return nil, ExportOutput{Path: path, Rows: len(settings), Kind: meta["kind"]}, nil
}
