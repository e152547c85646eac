// Package config loads server settings from an optional TOML file with
// environment overrides. A .env file is auto-loaded by cmd before config is
// read.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server    Server    `toml:"server"`
	LLM       LLM       `toml:"llm"`
	Diffusion Diffusion `toml:"diffusion"`
	Styles    Styles    `toml:"styles"`
}

type Server struct {
	Addr      string `toml:"addr"`
	ExportDir string `toml:"export_dir"`
}

type LLM struct {
	// Provider selects the backend: "openai" (any OpenAI-compatible
	// endpoint, including local Ollama) or "gemini".
	Provider string `toml:"provider"`
	// BaseURL is the OpenAI-compatible endpoint to target. The default is a
	// local Ollama server; set it empty to use the hosted API.
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

type Diffusion struct {
	Endpoint string `toml:"endpoint"`
}

type Styles struct {
	Config    string `toml:"config"`
	CustomCSV string `toml:"custom_csv"`
}

func Default() Config {
	return Config{
		Server: Server{
			Addr:      ":7861",
			ExportDir: "export",
		},
		LLM: LLM{
			Provider: "openai",
			BaseURL:  "http://localhost:11434/v1",
			Model:    "gemma3:12b",
		},
		Diffusion: Diffusion{
			Endpoint: "http://localhost:7860/sdapi/v1/txt2img",
		},
		Styles: Styles{
			Config:    "config/styles.json",
			CustomCSV: "config/styles/custom_styles.csv",
		},
	}
}

// Load reads the TOML file at path when it exists, then applies environment
// overrides. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Zero-config runs are fine.
		default:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	overrideString(&c.Server.ExportDir, "EXPORT_DIR")
	overrideString(&c.LLM.Provider, "LLM_PROVIDER")
	overrideString(&c.LLM.BaseURL, "LLM_BASE_URL")
	overrideString(&c.LLM.Model, "LLM_MODEL")
	overrideString(&c.Diffusion.Endpoint, "SD_ENDPOINT")
	overrideString(&c.Styles.Config, "STYLES_CONFIG")
	overrideString(&c.Styles.CustomCSV, "STYLES_CUSTOM_CSV")
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
