package schema

import "strings"

// Txt2ImgRequest is the payload for an AUTOMATIC1111-style
// /sdapi/v1/txt2img endpoint.
type Txt2ImgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	SamplerName    string  `json:"sampler_name"`
	CFGScale       float64 `json:"cfg_scale"`
	Steps          int     `json:"steps"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Seed           int64   `json:"seed"`
}

// DefaultTxt2ImgRequest returns the sampler settings the tool always uses.
func DefaultTxt2ImgRequest() *Txt2ImgRequest {
	return &Txt2ImgRequest{
		SamplerName: "DPM++ 2M SDE",
		CFGScale:    7.5,
		Steps:       23,
		Width:       512,
		Height:      512,
		Seed:        -1,
	}
}

// SetPrompts fills both prompt fields, collapsing duplicate separators left
// over from composition.
func (r *Txt2ImgRequest) SetPrompts(prompt, negative string) {
	r.Prompt = cleanPrompt(prompt)
	r.NegativePrompt = cleanPrompt(negative)
}

func cleanPrompt(s string) string {
	s = strings.ReplaceAll(s, ",,", ",")
	s = strings.TrimSpace(s)
	return strings.Trim(s, ",")
}

// Txt2ImgResponse carries base64-encoded PNGs from the diffusion API.
type Txt2ImgResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info,omitempty"`
}
