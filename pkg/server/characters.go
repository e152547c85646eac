package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/openai/openai-go/v3"

	"comicinsights/pkg/schema"
	"comicinsights/pkg/session"
	"comicinsights/pkg/telemetry"
	"comicinsights/pkg/utils"
)

const extractChunkRunes = 8192 * 4

type extractReq struct {
	Summary string `json:"summary"`
}

// POST /api/sessions/:id/characters/extract
func (s *Server) handleExtractCharacters(c echo.Context) error {
	id := c.Param("id")

	var req extractReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Summary = strings.TrimSpace(req.Summary)
	if req.Summary == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "summary is required")
	}
	if s.Sessions.IsConfirmed(id) {
		return echo.NewHTTPError(http.StatusConflict, "character roster is confirmed")
	}

	log.Info("starting character extraction", "session", id, "chars", len(req.Summary))
	w := utils.NewSSEWriter(c)
	defer w.Close()

	ctx := c.Request().Context()
	chunks := utils.ChunkText(req.Summary, extractChunkRunes)

	var roster []schema.Character
	for i, chunk := range chunks {
		if cancelled(c) {
			log.Warn("extraction cancelled by client", "chunk", i+1)
			return nil
		}

		if tokens, err := utils.NumTokens(extractPrompt + chunk); err == nil {
			log.Debug("extracting chunk", "chunk", i+1, "of", len(chunks), "tokens", tokens)
		}

		params := &openai.ChatCompletionNewParams{
			ResponseFormat: schema.ExtractionResponseFormat(),
		}

		var out string
		err := telemetry.Track("extract", func() error {
			var err error
			out, err = s.Inferencer.Infer(ctx, params, extractPrompt, chunk)
			return err
		})
		if err != nil {
			_ = w.Event("error", map[string]string{"chunk": strconv.Itoa(i + 1), "error": err.Error()})
			continue
		}

		parsed, ok := parseExtraction(out)
		if !ok {
			log.Warn("failed to parse extraction JSON, attempting to fix", "chunk", i+1)
			log.Debug("model output", "output", utils.LimitStr(out, 500))

			fixed, fixErr := s.Inferencer.Infer(ctx, params, extractPrompt+"\n\n"+fixJSONPrompt, out)
			if fixErr != nil {
				_ = w.Event("error", map[string]string{"chunk": strconv.Itoa(i + 1), "error": fixErr.Error()})
				continue
			}
			if parsed, ok = parseExtraction(fixed); !ok {
				log.Warn("extraction unparsable after fix attempt", "chunk", i+1)
				continue
			}
		}

		roster = mergeCharacters(roster, session.NormalizeCharacters(parsed))
		if err := w.Event("data", map[string]any{"characters": roster}); err != nil {
			log.Warn("SSE write error", "error", err)
			return nil
		}
	}

	if cancelled(c) {
		return nil
	}
	if len(roster) == 0 {
		log.Error("extraction produced no valid characters", "session", id)
		return w.Event("error", map[string]string{"error": "no valid characters extracted"})
	}

	s.Sessions.SetCharacters(id, roster)
	log.Info("character extraction complete", "session", id, "characters", len(roster))

	return w.Event("done", map[string]any{
		"characters": s.Sessions.Characters(id),
		"version":    s.Sessions.RosterVersion(id),
	})
}

// parseExtraction accepts either the schema envelope or the bare array some
// models insist on.
func parseExtraction(out string) ([]schema.Character, bool) {
	if obj := utils.ExtractJSON(out, '{', '}'); obj != "" {
		var env schema.Extraction
		if err := json.Unmarshal([]byte(obj), &env); err == nil && len(env.Characters) > 0 {
			return env.Characters, true
		}
	}
	if arr := utils.ExtractJSON(out, '[', ']'); arr != "" {
		var list []schema.Character
		if err := json.Unmarshal([]byte(arr), &list); err == nil && len(list) > 0 {
			return list, true
		}
	}
	return nil, false
}

// mergeCharacters folds updates into base by case-insensitive name,
// preserving order of first appearance.
func mergeCharacters(base, updates []schema.Character) []schema.Character {
	byName := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	dst := make(map[string]schema.Character, len(base))
	order := make([]string, 0, len(base))

	for _, ch := range base {
		k := byName(ch.Name)
		if k == "" {
			continue
		}
		dst[k] = ch
		order = append(order, k)
	}

	for _, up := range updates {
		k := byName(up.Name)
		if k == "" {
			continue
		}
		if cur, ok := dst[k]; ok {
			dst[k] = mergeOne(cur, up)
		} else {
			dst[k] = up
			order = append(order, k)
		}
	}

	out := make([]schema.Character, 0, len(dst))
	for _, k := range order {
		out = append(out, dst[k])
	}
	return out
}

func mergeOne(a, b schema.Character) schema.Character {
	if a.Role == "" {
		a.Role = b.Role
	}
	if len(b.Appearance) > len(a.Appearance) {
		a.Appearance = b.Appearance
	}
	a.BooruTags = unionTags(a.BooruTags, b.BooruTags)
	return a
}

// unionTags merges tag lists, skipping tags that are near-duplicates of one
// already present.
func unionTags(a, b schema.TagList) schema.TagList {
	out := a.Tags()
NextTag:
	for _, tag := range b.Tags() {
		for _, existing := range out {
			if utils.Similarity(existing, tag) >= 0.9 {
				continue NextTag
			}
		}
		out = append(out, tag)
	}
	return schema.TagList(strings.Join(out, ", "))
}

// GET /api/sessions/:id/characters
func (s *Server) handleGetCharacters(c echo.Context) error {
	id := c.Param("id")
	return c.JSON(http.StatusOK, map[string]any{
		"characters": s.Sessions.Characters(id),
		"confirmed":  s.Sessions.IsConfirmed(id),
		"version":    s.Sessions.RosterVersion(id),
	})
}

// PUT /api/sessions/:id/characters
func (s *Server) handleSetCharacters(c echo.Context) error {
	id := c.Param("id")
	if s.Sessions.IsConfirmed(id) {
		return echo.NewHTTPError(http.StatusConflict, "character roster is confirmed")
	}

	var req struct {
		Characters []schema.Character `json:"characters"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	valid := session.NormalizeCharacters(req.Characters)
	if len(valid) == 0 && len(req.Characters) > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no valid characters in request")
	}

	s.Sessions.SetCharacters(id, valid)
	return c.JSON(http.StatusOK, map[string]any{
		"characters": s.Sessions.Characters(id),
		"version":    s.Sessions.RosterVersion(id),
	})
}

// POST /api/sessions/:id/characters
func (s *Server) handleAddCharacter(c echo.Context) error {
	id := c.Param("id")
	if s.Sessions.IsConfirmed(id) {
		return echo.NewHTTPError(http.StatusConflict, "character roster is confirmed")
	}

	var ch schema.Character
	if err := c.Bind(&ch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	ch.Source = "manual"

	charID, err := s.Sessions.AddCharacter(id, ch)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"id":      charID,
		"version": s.Sessions.RosterVersion(id),
	})
}

// PATCH /api/sessions/:id/characters/:charID
func (s *Server) handleUpdateCharacter(c echo.Context) error {
	id := c.Param("id")
	if s.Sessions.IsConfirmed(id) {
		return echo.NewHTTPError(http.StatusConflict, "character roster is confirmed")
	}

	var update session.CharacterUpdate
	if err := c.Bind(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	if err := s.Sessions.UpdateCharacter(id, c.Param("charID"), update); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"characters": s.Sessions.Characters(id),
		"version":    s.Sessions.RosterVersion(id),
	})
}

// DELETE /api/sessions/:id/characters/:charID
func (s *Server) handleDeleteCharacter(c echo.Context) error {
	id := c.Param("id")
	if s.Sessions.IsConfirmed(id) {
		return echo.NewHTTPError(http.StatusConflict, "character roster is confirmed")
	}

	s.Sessions.DeleteCharacter(id, c.Param("charID"))
	return c.JSON(http.StatusOK, map[string]any{
		"characters": s.Sessions.Characters(id),
		"version":    s.Sessions.RosterVersion(id),
	})
}

// POST /api/sessions/:id/characters/confirm
func (s *Server) handleConfirmCharacters(c echo.Context) error {
	id := c.Param("id")
	if len(s.Sessions.Characters(id)) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot confirm an empty roster")
	}
	s.Sessions.Confirm(id)
	return c.JSON(http.StatusOK, map[string]any{"confirmed": true})
}

// POST /api/sessions/:id/characters/export
func (s *Server) handleExportCharacters(c echo.Context) error {
	id := c.Param("id")
	export := s.Sessions.ExportRoster(id)

	path := filepath.Join(s.Sessions.ExportDir(), "characters_"+utils.SanitizeFilename(id)+".json")
	if err := s.Sessions.SaveRoster(id, path); err != nil {
		log.Error("roster export failed", "session", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "export failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"path": path, "export": export})
}

type tagsReq struct {
	Appearance string `json:"appearance"`
}

// POST /api/characters/tags
func (s *Server) handleRegenerateTags(c echo.Context) error {
	var req tagsReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Appearance = strings.TrimSpace(req.Appearance)
	if req.Appearance == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "appearance is required")
	}

	var out string
	err := telemetry.Track("tags", func() error {
		var err error
		out, err = s.Inferencer.Infer(c.Request().Context(), nil, tagsPrompt, req.Appearance)
		return err
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "tag generation failed")
	}

	tags := strings.TrimSpace(strings.ReplaceAll(stripThinking(out), "\n", " "))
	tags = strings.Trim(tags, `"`)
	if tags == "" {
		return echo.NewHTTPError(http.StatusBadGateway, "empty tag result")
	}

	return c.JSON(http.StatusOK, map[string]string{"booru_tags": tags})
}
