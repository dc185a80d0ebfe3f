package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/hrygo/calchat/internal/profile"
	"github.com/hrygo/calchat/plugin/ai"
	"github.com/hrygo/calchat/plugin/ai/agent"
	"github.com/hrygo/calchat/plugin/ai/metrics"
	"github.com/hrygo/calchat/server/router/apiv1"
	"github.com/hrygo/calchat/server/service/booking"
)

var rootCmd = &cobra.Command{
	Use:   "calchat",
	Short: "Natural-language assistant for managing Cal.com bookings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	// Load .env if present; real environment variables take precedence.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded configuration from .env")
	}

	p, err := profile.FromEnv()
	if err != nil {
		return err
	}

	llm, err := ai.NewProvider(&ai.Config{
		BaseURL:   p.OpenAIBaseURL,
		APIKey:    p.OpenAIAPIKey,
		ChatModel: p.ChatModel,
		Timeout:   p.HTTPTimeout,
	})
	if err != nil {
		return err
	}

	calClient, err := booking.NewCalClient(&booking.Config{
		BaseURLV1:     p.CalBaseURLV1,
		BaseURLV2:     p.CalBaseURLV2,
		APIKey:        p.CalAPIKey,
		EventTypeSlug: p.CalEventTypeSlug,
		Timeout:       p.HTTPTimeout,
	})
	if err != nil {
		return err
	}

	schema := agent.NewSchema()
	executor := agent.NewExecutor(calClient, schema)
	ms := metrics.NewInMemory()

	orchestrator, err := agent.NewOrchestrator(llm, executor, schema, agent.Config{
		MaxToolSteps: p.MaxToolSteps,
	}, ms)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	apiv1.NewAPIV1Service(orchestrator, ms, p).RegisterRoutes(e)

	addr := fmt.Sprintf("%s:%d", p.Addr, p.Port)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()
	slog.Info("calchat server started",
		"addr", addr,
		"mode", p.Mode,
		"chat_model", p.ChatModel)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
}
