// Package diffusion is a minimal client for an AUTOMATIC1111-style
// Stable Diffusion txt2img HTTP endpoint.
package diffusion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"comicinsights/pkg/schema"
)

// GenerationError wraps failures talking to or decoding from the image API.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image generation failed: %s: %v", e.Reason, e.Err)
	}
	return "image generation failed: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		// Diffusion backends routinely take minutes per panel.
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) Endpoint() string { return c.endpoint }

// Generate POSTs the payload and returns the decoded images.
func (c *Client) Generate(ctx context.Context, req *schema.Txt2ImgRequest) ([][]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &GenerationError{Reason: "encoding payload", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &GenerationError{Reason: "building request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &GenerationError{Reason: "api request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &GenerationError{Reason: fmt.Sprintf("api status %d: %s", resp.StatusCode, snippet)}
	}

	var out struct {
		Images []string `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &GenerationError{Reason: "invalid api response", Err: err}
	}
	if len(out.Images) == 0 {
		return nil, &GenerationError{Reason: "no images in response"}
	}

	images := make([][]byte, 0, len(out.Images))
	for i, enc := range out.Images {
		data, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, &GenerationError{Reason: fmt.Sprintf("decoding image %d", i), Err: err}
		}
		images = append(images, data)
	}
	return images, nil
}
