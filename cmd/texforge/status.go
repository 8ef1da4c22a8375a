package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/pkg/client"
	"github.com/texforge/texforge/pkg/retry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the CLSI is reachable",
	Long: `Status pings the CLSI's /status endpoint. Server errors and connection
failures are retried with backoff; any other answer is final.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Int("attempts", 3, "ping attempts before giving up")
}

func runStatus(cmd *cobra.Command, args []string) error {
	attempts, err := cmd.Flags().GetInt("attempts")
	if err != nil {
		return err
	}
	if attempts < 1 {
		return fmt.Errorf("--attempts must be at least 1")
	}

	cfg := projectConfig("")
	if err := applyLogConfig(cmd, cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c := client.New(client.Config{
		BaseURL:   cfg.CLSIURL,
		PublicURL: cfg.CLSIPublicURL,
		Timeout:   cfg.HTTPTimeout,
	})

	rc := retry.DefaultConfig()
	rc.MaxAttempts = attempts
	err = retry.Do(ctx, rc, func() error {
		return pingRetryable(c.Ping(ctx))
	})

	w := cmd.OutOrStdout()
	checked := c.LastPing().Format("15:04:05")
	if err != nil {
		logging.Debug("CLSI ping failed", zap.String("url", cfg.CLSIURL), zap.Error(err))
		fmt.Fprintf(w, "%s %s %s\n", errorColor.Sprint("offline"), cfg.CLSIURL, dimColor.Sprintf("(checked %s)", checked))
		return fmt.Errorf("CLSI %s: %w", cfg.CLSIURL, err)
	}
	fmt.Fprintf(w, "%s %s %s\n", outputColor.Sprint("online"), cfg.CLSIURL, dimColor.Sprintf("(checked %s)", checked))
	return nil
}

// pingRetryable marks connection failures and server errors as transient.
func pingRetryable(err error) error {
	if err == nil {
		return nil
	}
	if se, ok := client.AsStatus(err); ok && se.StatusCode < 500 {
		return err
	}
	return retry.Retryable(err)
}
