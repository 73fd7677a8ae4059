package sentinel

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/server/dto"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show health and graph statistics of a running server",
	RunE:  runStatus,
}

var statusServerURL string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusServerURL, "server", "", "Server base URL (default from config, e.g. http://localhost:8080)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	base := statusServerURL
	if base == "" {
		base = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var health dto.HealthResponse
	healthCode, err := getJSON(client, base+"/api/health", &health)
	if err != nil {
		return fmt.Errorf("server unreachable at %s: %w", base, err)
	}

	fmt.Printf("Server:  %s\n", base)
	fmt.Printf("Health:  %s (agent %s)\n", health.Status, health.AgentStatus)

	var stats dto.StatsResponse
	if _, err := getJSON(client, base+"/api/stats", &stats); err != nil {
		return fmt.Errorf("failed to fetch stats: %w", err)
	}

	fmt.Printf("Nodes:   %d\n", stats.TotalNodes)
	fmt.Printf("Edges:   %d\n", stats.TotalEdges)
	fmt.Printf("Stale:   %d\n", stats.StaleURLsCount)

	if healthCode != http.StatusOK {
		return fmt.Errorf("server reports %s", health.Status)
	}
	return nil
}

func getJSON(client *http.Client, url string, out any) (int, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("invalid response from %s: %w", url, err)
	}
	return resp.StatusCode, nil
}
