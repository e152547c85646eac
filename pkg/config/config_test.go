package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7861" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.LLM.Model != "gemma3:12b" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.Diffusion.Endpoint != "http://localhost:7860/sdapi/v1/txt2img" {
		t.Errorf("endpoint = %q", cfg.Diffusion.Endpoint)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7861" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comicinsights.toml")
	data := `
[server]
addr = ":9000"

[llm]
provider = "gemini"
model = "gemini-2.0-flash"

[diffusion]
endpoint = "http://gpu:7860/sdapi/v1/txt2img"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Server.ExportDir != "export" {
		t.Errorf("unset fields should keep defaults, export_dir = %q", cfg.Server.ExportDir)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[[[not toml"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("LLM_MODEL", "llama3.1:8b")
	t.Setenv("SD_ENDPOINT", "http://other:7860/sdapi/v1/txt2img")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.LLM.Model != "llama3.1:8b" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.Diffusion.Endpoint != "http://other:7860/sdapi/v1/txt2img" {
		t.Errorf("endpoint = %q", cfg.Diffusion.Endpoint)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comicinsights.toml")
	if err := os.WriteFile(path, []byte("[server]\naddr = \":9000\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv("PORT", "8081")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8081" {
		t.Errorf("env should win over file, addr = %q", cfg.Server.Addr)
	}
}
