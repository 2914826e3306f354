package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/pcg-director/internal/clients/analysis"
	"github.com/KirkDiggler/pcg-director/internal/entities"
)

type requestOptions struct {
	url             string
	playerID        string
	health          float64
	killCount       int
	averageKillTime float64
	isDying         bool
	timeout         time.Duration
}

var requestOpts requestOptions

// newAnalysisClient is swapped out in tests
var newAnalysisClient = analysis.New

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Send one player state to the analysis service",
	Long: `Request runs a single analysis round trip, prints every broadcast it
receives and the final result as JSON. It exits non-zero on any outcome
other than success.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRequest(cmd, requestOpts)
	},
}

func init() {
	f := requestCmd.Flags()
	f.StringVar(&requestOpts.url, "url", analysis.DefaultURL, "Analysis endpoint")
	f.StringVar(&requestOpts.playerID, "player-id", "", "Player ID sent in the X-Player-ID header")
	f.Float64Var(&requestOpts.health, "health", 100, "Player health")
	f.IntVar(&requestOpts.killCount, "kills", 0, "Kill count")
	f.Float64Var(&requestOpts.averageKillTime, "avg-kill-time", 0, "Average seconds per kill")
	f.BoolVar(&requestOpts.isDying, "dying", false, "Player is dying")
	f.DurationVar(&requestOpts.timeout, "timeout", 30*time.Second, "Request timeout")
}

type broadcastLine struct {
	Event     string              `json:"event"`
	RequestID string              `json:"requestId"`
	Params    *entities.MapParams `json:"params"`
}

func runRequest(cmd *cobra.Command, opts requestOptions) error {
	client, err := newAnalysisClient(&analysis.Config{
		URL:      opts.url,
		Timeout:  opts.timeout,
		PlayerID: opts.playerID,
	})
	if err != nil {
		return fmt.Errorf("failed to create analysis client: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	client.OnMapParamsReceived(func(_ context.Context, requestID string, params *entities.MapParams) {
		_ = enc.Encode(broadcastLine{
			Event:     analysis.EventMapParamsReceived,
			RequestID: requestID,
			Params:    params,
		})
	})

	result := client.Analyze(cmd.Context(), &entities.PlayerState{
		Health:          opts.health,
		KillCount:       opts.killCount,
		AverageKillTime: opts.averageKillTime,
		IsDying:         opts.isDying,
	})

	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to print result: %w", err)
	}
	if !result.OK() {
		return fmt.Errorf("analysis %s: %s", result.Outcome, result.ErrorMessage())
	}
	return nil
}
