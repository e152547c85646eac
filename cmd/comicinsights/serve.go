package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	gommon "github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"comicinsights/pkg/config"
	"comicinsights/pkg/diffusion"
	"comicinsights/pkg/inference"
	"comicinsights/pkg/queue/sd"
	"comicinsights/pkg/server"
	"comicinsights/pkg/session"
	"comicinsights/pkg/styles"
)

func serveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Comic Insights server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer done()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	inf, err := buildInferencer(cfg.LLM)
	if err != nil {
		return err
	}

	sessions, err := session.NewStore(cfg.Server.ExportDir)
	if err != nil {
		return err
	}

	presets, err := styles.Load(cfg.Styles.Config, cfg.Styles.CustomCSV)
	if err != nil {
		return err
	}

	q := sd.New(diffusion.NewClient(cfg.Diffusion.Endpoint))
	q.Start()

	srv := server.NewServer(ctx, inf, sessions, presets, q)
	srv.Echo.Logger.SetLevel(gommon.INFO)

	log.Info("starting Comic Insights",
		"addr", cfg.Server.Addr,
		"llm", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"diffusion", cfg.Diffusion.Endpoint,
	)

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("shutdown error", "error", err)
		}
		close(finishedShutDown)
	}()

	if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-finishedShutDown
	return nil
}

func buildInferencer(cfg config.LLM) (inference.Inferencer, error) {
	switch cfg.Provider {
	case "", "openai":
		openAI := inference.NewOpenAIInferencer(os.Getenv("OPENAI_API_KEY"), cfg.Model)
		// base_url selects the endpoint; the default points at a local
		// Ollama server, which needs no key. Set it empty to target the
		// hosted API.
		if cfg.BaseURL != "" {
			openAI.ChangeBaseURL(cfg.BaseURL)
		}
		return openAI, nil
	case "gemini":
		return inference.NewGeminiInferencer(os.Getenv("GEMINI_API_KEY"), cfg.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
