package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var purgeOlderThan time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the audit cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts by language and model tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		stats, err := st.AuditStats(cmd.Context())
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "cache is empty")
			return nil
		}

		total := 0
		for _, s := range stats {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-6s %d\n", s.Language, s.ModelTag, s.Count)
			total += s.Count
		}
		fmt.Fprintf(cmd.OutOrStdout(), "total: %d\n", total)
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cache entries older than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		cutoff := time.Now().UTC().Add(-purgeOlderThan)
		n, err := st.PurgeAudits(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		zap.L().Info("cache purged",
			zap.Int("removed", n),
			zap.Time("cutoff", cutoff))
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries older than %s\n", n, purgeOlderThan)
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 30*24*time.Hour, "age threshold for deletion")
	cacheCmd.AddCommand(cacheStatsCmd, cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
