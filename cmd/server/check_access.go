package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/repograder/internal/cache"
	"github.com/kiranshivaraju/repograder/internal/config"
)

var checkAccessCmd = &cobra.Command{
	Use:   "check-access <repo-url>",
	Short: "Check whether a repository can be cloned",
	Long: "Looks up repository metadata with the configured GITHUB_TOKEN and prints the " +
		"access result. Redis is used as a result cache when REDIS_URL is set and reachable.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheckAccess(cmd.Context(), args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(checkAccessCmd)
}

func runCheckAccess(ctx context.Context, rawURL string, out io.Writer) error {
	gh, rc, err := config.LoadGitHub()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var c cache.Cache
	if rc.URL != "" {
		rcache, err := cache.NewRedisCache(rc.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer rcache.Close()
		if err := rcache.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, checking without cache", "error", err)
		} else {
			c = rcache
		}
	}

	an, err := newAnalyzer(gh, c)
	if err != nil {
		return err
	}
	res, err := an.CheckAccess(ctx, rawURL)
	if err != nil {
		return err
	}
	return writeJSON(out, res)
}
