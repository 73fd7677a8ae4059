package sentinel

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/sentinel/pkg/config"
)

var healCmd = &cobra.Command{
	Use:   "heal",
	Short: "Run a single healing pass and exit",
	Long: `Run one healing pass: find sources whose facts have gone unverified past
the staleness threshold, re-scrape and re-verify each, then print the
outcome summary and exit.`,
	RunE: runHeal,
}

func init() {
	rootCmd.AddCommand(healCmd)

	healCmd.Flags().Int("days", 7, "Staleness threshold in days")
	healCmd.Flags().Int("parallelism", 0, "Concurrent URL reprocessing (0 uses the configured value)")
}

func runHeal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("days") {
		cfg.Heal.DaysThreshold, _ = cmd.Flags().GetInt("days")
	}
	if cmd.Flags().Changed("parallelism") {
		cfg.Heal.Parallelism, _ = cmd.Flags().GetInt("parallelism")
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize sentinel: %w", err)
	}
	defer rt.close(context.Background())

	fmt.Printf("Healing sources unverified for %d+ days...\n", cfg.Heal.DaysThreshold)

	report := rt.client.HealOnce(cmd.Context())

	fmt.Printf("Healing pass finished in %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Printf("Stale sources: %d\n", report.StaleURLs)
	for status, count := range report.Outcomes {
		fmt.Printf("  %-20s %d\n", status, count)
	}
	if len(report.Failures) > 0 {
		fmt.Printf("Failures (%d):\n", len(report.Failures))
		for _, failure := range report.Failures {
			fmt.Printf("  %s\n", failure)
		}
		return fmt.Errorf("%d sources failed to heal", len(report.Failures))
	}

	return nil
}
