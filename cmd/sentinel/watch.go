package sentinel

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [URL...]",
	Short: "Ingest one or more source URLs",
	Long: `Scrape, extract and store each given URL, printing the per-URL outcome.

URLs can be passed as arguments or collected in a YAML watchlist:

    sentinel watch https://example.com/about
    sentinel watch --file watchlist.yaml

The watchlist file is a YAML document with a top-level "urls" list:

    urls:
      - https://example.com/about
      - https://example.com/team`,
	RunE: runWatch,
}

var watchFile string

// watchlist is the YAML shape accepted by --file.
type watchlist struct {
	URLs []string `yaml:"urls"`
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchFile, "file", "", "YAML watchlist file with a urls list")
}

func runWatch(cmd *cobra.Command, args []string) error {
	urls, err := collectWatchURLs(args)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given: pass them as arguments or with --file")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize sentinel: %w", err)
	}
	defer rt.close(context.Background())

	failed := 0
	for _, url := range urls {
		result := rt.client.Watch(cmd.Context(), url)
		printResult(result)
		if result.Status != types.StatusSuccess &&
			result.Status != types.StatusUnchangedVerified &&
			result.Status != types.StatusNoFacts {
			failed++
		}
	}

	fmt.Printf("\n%d processed, %d failed\n", len(urls), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d URLs failed", failed, len(urls))
	}
	return nil
}

func collectWatchURLs(args []string) ([]string, error) {
	urls := append([]string{}, args...)

	if watchFile != "" {
		data, err := os.ReadFile(watchFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read watchlist: %w", err)
		}
		var list watchlist
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse watchlist: %w", err)
		}
		urls = append(urls, list.URLs...)
	}

	return urls, nil
}

func printResult(result *types.ProcessResult) {
	switch result.Status {
	case types.StatusSuccess:
		fmt.Printf("%-60s %s (%d nodes, %d edges)\n",
			result.URL, result.Status, result.ExtractedNodes, result.ExtractedEdges)
	case types.StatusUnchangedVerified:
		fmt.Printf("%-60s %s (%d edges re-verified)\n",
			result.URL, result.Status, result.EdgesUpdated)
	default:
		line := fmt.Sprintf("%-60s %s", result.URL, result.Status)
		if result.Error != "" {
			line += ": " + result.Error
		}
		fmt.Println(line)
	}
}
