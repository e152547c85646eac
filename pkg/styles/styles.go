// Package styles loads art-style presets and composes the final prompts sent
// to the diffusion backend.
package styles

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"comicinsights/pkg/utils"
)

// Config is the styles.json shape: global prompt hardware plus named
// presets and aspect ratios.
type Config struct {
	StabilizerLora    string        `json:"stabilizer_lora"`
	NegativeEmbedding string        `json:"negative_embedding"`
	Styles            []Style       `json:"styles"`
	AspectRatios      []AspectRatio `json:"aspect_ratios"`
}

// Style is a named preset merged into every generation that selects it.
type Style struct {
	Name      string   `json:"name"`
	PromptAdd string   `json:"prompt_add"`
	Lora      []string `json:"lora,omitempty"`
	Negative  string   `json:"negative,omitempty"`
}

type AspectRatio struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// CustomStyle is one row of the custom styles CSV. Prompt may contain a
// {prompt} placeholder for the user's text.
type CustomStyle struct {
	Name           string
	Prompt         string
	NegativePrompt string
}

// MaxDim caps either output dimension.
const MaxDim = 1536

type Manager struct {
	config Config
	custom []CustomStyle
}

// Default returns the built-in presets used when no styles.json is present.
func Default() Config {
	return Config{
		NegativeEmbedding: "lowres, bad anatomy, watermark",
		Styles: []Style{
			{Name: "Manga", PromptAdd: "manga style, screentone, dynamic composition, ink lineart"},
			{Name: "Comic Book", PromptAdd: "western comic style, bold outlines, halftone shading, vibrant colors"},
			{Name: "Realistic", PromptAdd: "photorealistic, detailed lighting, cinematic"},
			{Name: "Watercolor", PromptAdd: "watercolor painting, soft edges, paper texture"},
		},
		AspectRatios: []AspectRatio{
			{Name: "Square (1:1)", Width: 512, Height: 512},
			{Name: "Portrait (2:3)", Width: 512, Height: 768},
			{Name: "Landscape (3:2)", Width: 768, Height: 512},
			{Name: "Wide (16:9)", Width: 912, Height: 512},
		},
	}
}

// Load reads styles.json and the optional custom styles CSV. A missing
// config file falls back to the built-in presets; a missing CSV just means
// no custom styles.
func Load(configPath, customCSVPath string) (*Manager, error) {
	m := &Manager{config: Default()}

	if configPath != "" && utils.Exists(configPath) {
		cfg, err := utils.Load[Config](configPath)
		if err != nil {
			return nil, fmt.Errorf("loading styles config %s: %w", configPath, err)
		}
		if len(cfg.Styles) == 0 {
			return nil, fmt.Errorf("styles config %s defines no styles", configPath)
		}
		if len(cfg.AspectRatios) == 0 {
			cfg.AspectRatios = Default().AspectRatios
		}
		m.config = cfg
	}

	if customCSVPath != "" && utils.Exists(customCSVPath) {
		custom, err := loadCustomCSV(customCSVPath)
		if err != nil {
			return nil, err
		}
		m.custom = custom
		log.Info("loaded custom styles", "path", customCSVPath, "count", len(custom))
	}

	return m, nil
}

func loadCustomCSV(path string) ([]CustomStyle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening custom styles %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing custom styles %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	nameIdx, ok := col["name"]
	if !ok {
		return nil, fmt.Errorf("custom styles %s: missing name column", path)
	}
	promptIdx, ok := col["prompt"]
	if !ok {
		return nil, fmt.Errorf("custom styles %s: missing prompt column", path)
	}
	negIdx, hasNeg := col["negative_prompt"]

	out := make([]CustomStyle, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if nameIdx >= len(row) || promptIdx >= len(row) {
			continue
		}
		cs := CustomStyle{
			Name:   strings.TrimSpace(row[nameIdx]),
			Prompt: strings.TrimSpace(row[promptIdx]),
		}
		if cs.Name == "" || cs.Prompt == "" {
			continue
		}
		if hasNeg && negIdx < len(row) {
			cs.NegativePrompt = strings.TrimSpace(row[negIdx])
		}
		out = append(out, cs)
	}
	return out, nil
}

func (m *Manager) StyleNames() []string {
	out := make([]string, len(m.config.Styles))
	for i, s := range m.config.Styles {
		out[i] = s.Name
	}
	return out
}

func (m *Manager) CustomStyleNames() []string {
	out := make([]string, len(m.custom))
	for i, s := range m.custom {
		out[i] = s.Name
	}
	return out
}

func (m *Manager) AspectRatioNames() []string {
	out := make([]string, len(m.config.AspectRatios))
	for i, ar := range m.config.AspectRatios {
		out[i] = ar.Name
	}
	return out
}

// Style returns the named preset, falling back to the first one.
func (m *Manager) Style(name string) Style {
	for _, s := range m.config.Styles {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return m.config.Styles[0]
}

// AspectRatio returns the named ratio, falling back to the first one.
func (m *Manager) AspectRatio(name string) AspectRatio {
	for _, ar := range m.config.AspectRatios {
		if strings.EqualFold(ar.Name, name) {
			return ar
		}
	}
	return m.config.AspectRatios[0]
}

func (m *Manager) CustomStyle(name string) (CustomStyle, bool) {
	for _, s := range m.custom {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return CustomStyle{}, false
}

func (m *Manager) NegativeEmbedding() string { return m.config.NegativeEmbedding }

// BuildPrompt combines the user prompt, any selected custom styles, and the
// base style's additions. Custom-style negatives are collected separately.
func (m *Manager) BuildPrompt(userPrompt, styleName string, customNames []string) (prompt, negative string) {
	parts := []string{strings.TrimSpace(userPrompt)}
	var negParts []string

	for _, name := range customNames {
		cs, ok := m.CustomStyle(name)
		if !ok {
			log.Warn("unknown custom style", "name", name)
			continue
		}
		parts = append(parts, strings.ReplaceAll(cs.Prompt, "{prompt}", userPrompt))
		if cs.NegativePrompt != "" {
			negParts = append(negParts, cs.NegativePrompt)
		}
	}

	base := m.Style(styleName)
	if base.PromptAdd != "" {
		parts = append(parts, base.PromptAdd)
	}
	if base.Negative != "" {
		negParts = append(negParts, base.Negative)
	}

	return joinParts(parts), joinParts(negParts)
}

// ApplyLoras appends the style's LoRA references and the stabilizer LoRA to
// a composed prompt.
func (m *Manager) ApplyLoras(prompt string, style Style) string {
	lora := strings.TrimSpace(strings.Join(style.Lora, " ") + " " + m.config.StabilizerLora)
	if lora == "" {
		return prompt
	}
	return strings.TrimSpace(prompt + " " + lora)
}

// Dimensions derives the full output size from an aspect ratio and one
// user-chosen dimension, clamping both sides to MaxDim while preserving the
// ratio.
func Dimensions(aspect AspectRatio, custom int, dimType string) (width, height int) {
	w, h := aspect.Width, aspect.Height
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}
	if custom <= 0 {
		custom = w
		if dimType == "height" {
			custom = h
		}
	}

	if dimType == "height" {
		height = min(custom, MaxDim)
		width = height * w / h
		if width > MaxDim {
			width = MaxDim
			height = width * h / w
		}
	} else {
		width = min(custom, MaxDim)
		height = width * h / w
		if height > MaxDim {
			height = MaxDim
			width = height * w / h
		}
	}
	return width, height
}

func joinParts(parts []string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
