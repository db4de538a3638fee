package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inference-bench/inference-bench/internal/client"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available at the endpoint",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.API.Key == "" {
		return fmt.Errorf("api key is required (set INFERENCE_API_KEY)")
	}

	c := client.New(cfg.API.Endpoint, cfg.API.Key, client.WithTimeout(cfg.API.Timeout))

	names, err := c.Models(cmd.Context())
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
