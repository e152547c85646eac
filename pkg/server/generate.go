package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/webp"
	"github.com/labstack/echo/v4"

	"comicinsights/pkg/schema"
	"comicinsights/pkg/session"
	"comicinsights/pkg/styles"
	"comicinsights/pkg/telemetry"
	"comicinsights/pkg/utils"
)

// GET /api/styles
func (s *Server) handleGetStyles(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"styles":        s.Styles.StyleNames(),
		"custom_styles": s.Styles.CustomStyleNames(),
		"aspect_ratios": s.Styles.AspectRatioNames(),
	})
}

type generateReq struct {
	Prompt         string   `json:"prompt"`
	Style          string   `json:"style"`
	CustomStyles   []string `json:"custom_styles,omitempty"`
	CFGScale       float64  `json:"cfg_scale,omitempty"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	AspectRatio    string   `json:"aspect_ratio,omitempty"`
	Dimension      int      `json:"dimension,omitempty"`
	DimensionType  string   `json:"dimension_type,omitempty"`
	Force          bool     `json:"force,omitempty"`
}

type generateResp struct {
	Payload string                 `json:"payload"`
	Image   string                 `json:"image"`
	History []session.HistoryEntry `json:"history"`
}

// generated is the flight-cache result for one panel.
type generated struct {
	ImagePath string
	WebPPath  string
}

// POST /api/sessions/:id/generate
func (s *Server) handleGenerate(c echo.Context) error {
	id := c.Param("id")

	var req generateReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}
	if _, err := s.Sessions.History(id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if s.Queue == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "generation queue not configured")
	}

	payload := s.composePayload(req)

	key := payloadKey(payload)
	s.genParams.Store(key, payload)

	var result generated
	var err error
	if req.Force {
		result, err = s.genFlight.Force(key)
	} else {
		result, err = s.genFlight.Get(key)
	}
	s.genParams.Delete(key)
	if err != nil {
		log.Error("panel generation failed", "session", id, "error", err)
		return c.JSON(http.StatusBadGateway, utils.ErrJSON("generation failed: "+err.Error()))
	}

	if _, err := s.Sessions.AddEntry(id, session.HistoryEntry{
		Prompt: req.Prompt,
		Style:  req.Style,
		Image:  result.ImagePath,
		Plot:   payload.Prompt,
	}); err != nil {
		log.Warn("failed recording history entry", "session", id, "error", err)
	}

	history, _ := s.Sessions.History(id)
	pretty, _ := json.MarshalIndent(payload, "", "  ")
	return c.JSON(http.StatusOK, generateResp{
		Payload: string(pretty),
		Image:   result.ImagePath,
		History: history,
	})
}

// composePayload builds the full txt2img request: user prompt + custom
// styles + base style additions + LoRA refs, with negatives and the
// negative embedding collected alongside.
func (s *Server) composePayload(req generateReq) *schema.Txt2ImgRequest {
	prompt, styleNegative := s.Styles.BuildPrompt(req.Prompt, req.Style, req.CustomStyles)
	base := s.Styles.Style(req.Style)
	prompt = s.Styles.ApplyLoras(prompt, base)

	negParts := []string{styleNegative, strings.TrimSpace(req.NegativePrompt), s.Styles.NegativeEmbedding()}
	var kept []string
	for _, p := range negParts {
		if p != "" {
			kept = append(kept, p)
		}
	}

	aspect := s.Styles.AspectRatio(req.AspectRatio)
	width, height := styles.Dimensions(aspect, req.Dimension, req.DimensionType)

	payload := schema.DefaultTxt2ImgRequest()
	if req.CFGScale > 0 {
		payload.CFGScale = req.CFGScale
	}
	payload.Width = width
	payload.Height = height
	payload.SetPrompts(prompt, strings.Join(kept, ", "))
	return payload
}

func payloadKey(payload *schema.Txt2ImgRequest) string {
	bin, _ := json.Marshal(payload)
	sum := sha256.Sum256(bin)
	return hex.EncodeToString(sum[:8])
}

// generatePanel is the flight-cache work function: one queue round-trip,
// then PNG + WebP files in the export directory.
func (s *Server) generatePanel(key string) (generated, error) {
	payload, ok := s.genParams.Load(key)
	if !ok {
		return generated{}, fmt.Errorf("no payload recorded for key %s", key)
	}

	start := time.Now()
	respCh, errCh, err := s.Queue.Add(payload)
	if err != nil {
		telemetry.GenerationCalls.WithLabelValues("error").Inc()
		return generated{}, fmt.Errorf("queue add failed: %w", err)
	}

	// The worker buffers the outcome on one channel and closes the other,
	// so both cases can be ready at once. A nil receive means the channel
	// was closed and the real outcome sits on its sibling.
	var images [][]byte
	select {
	case <-s.Ctx.Done():
		telemetry.GenerationCalls.WithLabelValues("error").Inc()
		return generated{}, s.Ctx.Err()
	case err, ok := <-errCh:
		if ok && err != nil {
			telemetry.GenerationCalls.WithLabelValues("error").Inc()
			return generated{}, err
		}
		images = <-respCh
	case imgs, ok := <-respCh:
		if !ok {
			telemetry.GenerationCalls.WithLabelValues("error").Inc()
			return generated{}, <-errCh
		}
		images = imgs
	}

	if len(images) == 0 {
		telemetry.GenerationCalls.WithLabelValues("error").Inc()
		return generated{}, errors.New("no images generated")
	}

	telemetry.GenerationCalls.WithLabelValues("ok").Inc()
	telemetry.GenerationDuration.Observe(time.Since(start).Seconds())

	name := "generated_" + time.Now().Format("20060102_150405")
	pngPath := filepath.Join(s.Sessions.ExportDir(), name+".png")
	if err := os.WriteFile(pngPath, images[0], 0o644); err != nil {
		return generated{}, fmt.Errorf("writing %s: %w", pngPath, err)
	}

	out := generated{ImagePath: pngPath}
	if webpPath, err := saveWebP(images[0], filepath.Join(s.Sessions.ExportDir(), name+".webp")); err != nil {
		log.Warn("webp encode failed", "error", err)
	} else {
		out.WebPPath = webpPath
	}

	log.Info("generated panel", "image", pngPath, "duration", time.Since(start))
	return out, nil
}

// saveWebP re-encodes the PNG as a WebP gallery copy.
func saveWebP(pngData []byte, path string) (string, error) {
	img, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return "", fmt.Errorf("decoding png: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, webp.Options{Lossless: false, Quality: 90}); err != nil {
		return "", fmt.Errorf("encoding webp: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// paramMap holds the payload behind each flight key.
type paramMap struct {
	mu   sync.RWMutex
	data map[string]*schema.Txt2ImgRequest
}

func newParamMap() *paramMap {
	return &paramMap{data: make(map[string]*schema.Txt2ImgRequest)}
}

func (m *paramMap) Store(key string, payload *schema.Txt2ImgRequest) {
	m.mu.Lock()
	m.data[key] = payload
	m.mu.Unlock()
}

func (m *paramMap) Load(key string) (*schema.Txt2ImgRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.data[key]
	return payload, ok
}

func (m *paramMap) Delete(key string) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}
