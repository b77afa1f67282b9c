package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the fact-checking service is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		a, err := newApp(cfg, logger, appOptions{noCache: true})
		if err != nil {
			return err
		}
		defer a.close()

		status, err := a.client.Health(ctx)
		if err != nil {
			return fmt.Errorf("%s is unhealthy: %w", a.client.BaseURL(), err)
		}

		fmt.Printf("✓ %s: %s (%s)\n", a.client.BaseURL(), status.Status, status.Latency.Round(time.Millisecond))
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local verdict cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached verdicts (memory and disk)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Cache.Enabled {
			fmt.Println("Cache is disabled; nothing to clear")
			return nil
		}

		a, err := newApp(cfg, logger, appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.coord.ClearCache(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		if cfg.Cache.Dir != "" {
			fmt.Printf("✓ Cleared cache (%s)\n", cfg.Cache.Dir)
		} else {
			fmt.Println("✓ Cleared cache")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
