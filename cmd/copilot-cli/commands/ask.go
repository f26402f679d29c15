package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/answer"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/catalog"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/config"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/database"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/llm"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/questionbank"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/sqlgen"
)

var askShowRows bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the trips dataset",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowRows, "rows", false, "print the raw result rows")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	question := strings.Join(args, " ")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Keep CLI output readable; pipeline logs go to stderr at warn level.
	logger := observability.NewLogger(observability.LogConfig{
		Level:       "warn",
		Format:      "console",
		ServiceName: cfg.Observability.ServiceName,
	})

	executor, err := database.Open(logger, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer executor.Close()

	cat := catalog.NewCatalog(logger, cfg.Copilot.CatalogPath)
	knowledge := catalog.NewKnowledge(logger, cfg.Copilot.CatalogPath, cfg.Copilot.MetricsPath, cfg.Copilot.RulesPath)
	bank := questionbank.NewBank(logger, cfg.Copilot.FixturePath)
	examples := answer.NewExampleStore(logger, cfg.Copilot.ExamplesPath)

	var completer sqlgen.Completer
	if len(cfg.LLM.APIKeys) > 0 {
		completer = llm.NewClient(logger, cfg.LLM)
	}

	generator := sqlgen.NewGenerator(logger, completer, executor, cat, knowledge, cfg.Database.Table)
	service := answer.NewService(logger, bank, generator, executor, completer, examples, knowledge,
		cfg.Copilot.MatchThreshold, cfg.Copilot.ConfidenceThreshold)

	resp, err := service.Answer(ctx, question, nil)
	if err != nil {
		return err
	}

	printResponse(question, resp)
	return nil
}

func printResponse(question string, resp *answer.Response) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	faint := color.New(color.Faint)

	cyan.Printf("Q: %s\n\n", question)
	bold.Println(resp.Summary)

	if resp.TimeRange.From != "" {
		faint.Printf("\nTime range: %s to %s\n", resp.TimeRange.From, resp.TimeRange.To)
	}

	if len(resp.Metrics) > 0 {
		fmt.Println()
		green.Printf("Top results (%s):\n", resp.Grouping)
		for i, m := range resp.Metrics {
			fmt.Printf("  %d. %s: %.0f trips", i+1, m.Entity, m.Total)
			if m.Delayed > 0 || m.DelayPct > 0 {
				fmt.Printf(" (%.0f delayed, %.2f%%)", m.Delayed, m.DelayPct)
			}
			fmt.Println()
		}
	}

	if resp.Chart != nil {
		faint.Printf("\nSuggested chart: %s (%s)\n", resp.Chart.ChartType, resp.Chart.Reason)
	}

	if askShowRows && len(resp.RawRows) > 0 {
		fmt.Println()
		bold.Println("Rows:")
		for _, row := range resp.RawRows {
			fmt.Printf("  %v\n", row)
		}
	}
}
