package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/pcg-director/internal/redis"
	"github.com/KirkDiggler/pcg-director/internal/repositories/history"
)

var (
	pruneRedisAddr string
	pruneYes       bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune-history",
	Short: "Remove history entries that no longer decode",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPrune(cmd, pruneRedisAddr, pruneYes)
	},
}

func init() {
	pruneCmd.Flags().StringVar(&pruneRedisAddr, "redis-addr", "localhost:6379", "Redis address")
	pruneCmd.Flags().BoolVar(&pruneYes, "yes", false, "Delete without asking")
}

func runPrune(cmd *cobra.Command, addr string, yes bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	client, err := redis.NewClient(addr, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := redis.Ping(ctx, client, 5*time.Second); err != nil {
		return err
	}

	corrupt, checked, err := history.FindCorrupt(ctx, client)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Checked %d keys, found %d corrupted entries\n", checked, len(corrupt))
	if len(corrupt) == 0 {
		return nil
	}
	for _, entry := range corrupt {
		_, _ = fmt.Fprintf(out, "  - %s: %q\n", entry.Key, entry.Value)
	}

	if !yes {
		_, _ = fmt.Fprint(out, "Delete these entries? (yes/no): ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			_, _ = fmt.Fprintln(out, "Aborted, no changes made")
			return nil
		}
	}

	removed, err := history.RemoveCorrupt(ctx, client, corrupt)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Removed %d entries\n", removed)
	return nil
}
