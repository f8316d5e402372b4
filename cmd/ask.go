package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ioc-assistant/eassistant/internal/app"
	"github.com/ioc-assistant/eassistant/internal/assistant"
	"github.com/ioc-assistant/eassistant/internal/config"
	"github.com/ioc-assistant/eassistant/internal/log"
)

var (
	askUserID  string
	askVerbose bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askUserID, "user", assistant.DefaultUserID,
		"user the conversation turn is attributed to")
	askCmd.Flags().BoolVar(&askVerbose, "verbose", false,
		"print token usage and timing after the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Keep interactive output clean; warnings still surface.
	logger := log.New(log.Config{Level: slog.LevelWarn, JSON: cfg.LogJSON})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}

	resp, err := a.Agent.Query(ctx, assistant.Request{
		UserID:   askUserID,
		Question: question,
	})
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(resp.Answer)

	if askVerbose {
		fmt.Printf("\n[%s | %d prompt + %d completion = %d tokens | %.2fs]\n",
			resp.ModelVersion,
			resp.Usage.Prompt, resp.Usage.Completion, resp.Usage.Total,
			resp.ProcessingTime.Seconds(),
		)
	}
	return nil
}
