package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

var (
	healthAddr    string
	healthTimeout time.Duration
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check a running server's gRPC health endpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
		defer cancel()

		status, err := checkHealth(ctx, healthAddr)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), status)
		if status != grpc_health_v1.HealthCheckResponse_SERVING {
			return fmt.Errorf("server is %s", status)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthAddr, "server", "localhost:50051", "gRPC server address")
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "Check timeout")
}

func checkHealth(ctx context.Context, addr string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: HealthServiceName,
	})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus(), nil
}
