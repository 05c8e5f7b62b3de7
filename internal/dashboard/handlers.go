package dashboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/skillforge/internal/catalog"
	perrors "github.com/p-blackswan/skillforge/internal/errors"
	"github.com/p-blackswan/skillforge/internal/launcher"
	"github.com/p-blackswan/skillforge/internal/llm"
	"github.com/p-blackswan/skillforge/internal/runstore"
	"github.com/p-blackswan/skillforge/internal/skill"
)

// Launcher starts background runs.
type Launcher interface {
	Launch(req launcher.Request) (string, error)
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	runs       *runstore.Store
	launcher   Launcher
	catalog    *catalog.Store
	skillRoots []string
	stream     StreamConfig
	logger     zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(runs *runstore.Store, l Launcher, skillRoots []string, logger zerolog.Logger) *Handlers {
	return &Handlers{
		runs:       runs,
		launcher:   l,
		skillRoots: skillRoots,
		stream:     StreamConfig{}.withDefaults(),
		logger:     logger.With().Str("component", "handlers").Logger(),
	}
}

// SetCatalog attaches the optional run catalog.
func (h *Handlers) SetCatalog(c *catalog.Store) {
	h.catalog = c
}

func (h *Handlers) statuses() map[string]string {
	if h.catalog == nil {
		return nil
	}
	st, err := h.catalog.Statuses()
	if err != nil {
		h.logger.Warn().Err(err).Msg("catalog statuses unavailable")
		return nil
	}
	return st
}

// ListRuns handles GET /api/runs.
func (h *Handlers) ListRuns(c *fiber.Ctx) error {
	infos, err := h.runs.List()
	if err != nil {
		return h.fail(c, err)
	}
	st := h.statuses()
	rows := make([]RunRow, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, RunRow{RunInfo: info, Status: st[info.RunID]})
	}
	return c.JSON(RunListResponse{Runs: rows})
}

// GetRun handles GET /api/runs/:id.
func (h *Handlers) GetRun(c *fiber.Ctx) error {
	l, err := h.runs.Resolve(c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	report, err := h.runs.Report(l)
	if err != nil {
		return h.fail(c, err)
	}
	runErr, err := h.runs.RunError(l)
	if err != nil {
		return h.fail(c, err)
	}
	resp := RunDetailResponse{
		RunID:   l.ID(),
		Mission: h.runs.Mission(l),
		Plan:    h.runs.Plan(l),
		Report:  report,
		Error:   runErr,
	}
	if h.catalog != nil {
		if r, err := h.catalog.GetRun(l.ID()); err == nil {
			resp.Status = r.Status
		}
	}
	return c.JSON(resp)
}

// GetTrace handles GET /api/runs/:id/trace.
func (h *Handlers) GetTrace(c *fiber.Ctx) error {
	l, err := h.runs.Resolve(c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	events, err := h.runs.Trace(l)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(TraceResponse{Events: events})
}

// GetFiles handles GET /api/runs/:id/files.
func (h *Handlers) GetFiles(c *fiber.Ctx) error {
	l, err := h.runs.Resolve(c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	tree, err := h.runs.Tree(l)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(FilesResponse{Root: "workspace", Tree: tree})
}

// GetFile handles GET /api/runs/:id/file?path=.
func (h *Handlers) GetFile(c *fiber.Ctx) error {
	l, err := h.runs.Resolve(c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	rel := c.Query("path")
	if rel == "" {
		return h.fail(c, fmt.Errorf("path query parameter is required: %w", perrors.ErrInvalidInput))
	}
	f, err := h.runs.ReadFile(l, rel)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(f)
}

// ExecuteRun handles POST /api/runs/execute.
func (h *Handlers) ExecuteRun(c *fiber.Ctx) error {
	var req ExecuteRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Provider == "" {
		req.Provider = llm.ProviderMock
	}

	runID, err := h.launcher.Launch(launcher.Request{
		Mission:   req.Mission,
		Provider:  req.Provider,
		Model:     req.Model,
		SkillDirs: req.SkillDirs,
	})
	h.audit(c, "run.execute", runID, err)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(ExecuteResponse{RunID: runID})
}

func (h *Handlers) audit(c *fiber.Ctx, action, resource string, err error) {
	result, details := "accepted", ""
	if err != nil {
		result, details = "rejected", err.Error()
	}
	h.logger.Info().
		Str("request_id", requestID(c)).
		Str("action", action).
		Str("resource", resource).
		Str("result", result).
		Msg("audit")
	if h.catalog == nil {
		return
	}
	if aerr := h.catalog.Audit(&catalog.AuditEntry{
		RequestID: requestID(c),
		Action:    action,
		Resource:  resource,
		Result:    result,
		Details:   details,
	}); aerr != nil {
		h.logger.Warn().Err(aerr).Msg("audit write failed")
	}
}

// ListSkills handles GET /api/skills.
func (h *Handlers) ListSkills(c *fiber.Ctx) error {
	roots := h.skillRoots
	if extra := c.Query("skill_dir"); extra != "" {
		roots = append(append([]string{}, roots...), strings.Split(extra, ",")...)
	}
	rep := skill.Discover(roots)
	idx := rep.Index()
	out := SkillsResponse{Skills: make([]SkillInfo, 0, idx.Len()), Errors: rep.Errors}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	for _, ref := range idx.Skills() {
		out.Skills = append(out.Skills, SkillInfo{Name: ref.Name(), Description: ref.Description(), Path: ref.Path})
	}
	return c.JSON(out)
}

func parseSince(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("since must be a non-negative integer: %w", perrors.ErrInvalidInput)
	}
	return n, nil
}
