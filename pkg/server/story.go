package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/openai/openai-go/v3"

	"comicinsights/pkg/diff"
	"comicinsights/pkg/telemetry"
	"comicinsights/pkg/utils"
)

type summaryReq struct {
	Prompt string `json:"prompt"`
}

type refineReq struct {
	Summary     string `json:"summary"`
	Instruction string `json:"instruction,omitempty"`
}

type refineResp struct {
	Summary string           `json:"summary"`
	Deltas  []diff.WordDelta `json:"deltas,omitempty"`
	Changed bool             `json:"changed"`
}

// POST /api/story/summary
func (s *Server) handlePostSummary(c echo.Context) error {
	var req summaryReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	if tokens, err := utils.NumTokens(initialSummaryPrompt + req.Prompt); err == nil {
		log.Debug("generating summary", "chars", len(req.Prompt), "tokens", tokens)
	} else {
		log.Debug("generating summary", "chars", len(req.Prompt))
	}

	var out string
	err := telemetry.Track("summary", func() error {
		var err error
		out, err = s.Inferencer.Infer(c.Request().Context(), nil, initialSummaryPrompt, req.Prompt)
		return err
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "summary generation failed")
	}

	out = strings.TrimSpace(stripThinking(out))
	if out == "" {
		return echo.NewHTTPError(http.StatusBadGateway, "empty summary result")
	}

	return c.JSON(http.StatusOK, map[string]string{"summary": out})
}

// POST /api/story/correct
func (s *Server) handlePostCorrect(c echo.Context) error {
	return s.reviseSummary(c, "correct", func(req refineReq) string {
		return lightCorrectionPrompt
	})
}

// POST /api/story/refine
func (s *Server) handlePostRefine(c echo.Context) error {
	return s.reviseSummary(c, "refine", func(req refineReq) string {
		return fmt.Sprintf(instructionRefinementPrompt, req.Instruction)
	})
}

func (s *Server) reviseSummary(c echo.Context, operation string, systemFor func(refineReq) string) error {
	var req refineReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Summary = strings.TrimSpace(req.Summary)
	if req.Summary == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "summary is required")
	}
	if operation == "refine" && strings.TrimSpace(req.Instruction) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "instruction is required")
	}

	params := &openai.ChatCompletionNewParams{
		MaxCompletionTokens: openai.Int(int64(max(len(req.Summary)*2, 4096))),
	}

	var out string
	err := telemetry.Track(operation, func() error {
		var err error
		out, err = s.Inferencer.Edit(c.Request().Context(), params, systemFor(req), req.Summary)
		return err
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, operation+" inference failed")
	}

	out = strings.TrimSpace(stripThinking(out))
	if out == "" {
		return echo.NewHTTPError(http.StatusBadGateway, "empty revision result")
	}

	deltas := diff.Words(req.Summary, out)
	return c.JSON(http.StatusOK, refineResp{
		Summary: out,
		Deltas:  deltas,
		Changed: diff.Changed(deltas),
	})
}

// stripThinking drops a leading <think> block some local models emit.
func stripThinking(out string) string {
	if strings.Contains(out, "<think>") {
		if idx := strings.LastIndex(out, "</think>"); idx != -1 {
			out = out[idx+len("</think>"):]
		}
	}
	return out
}
