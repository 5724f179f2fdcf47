// Copyright 2026 The Plangate Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/peg/plangate/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	var (
		auditDir    string
		window      time.Duration
		listen      string
		withRuntime bool
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Export gate decisions as Prometheus metrics",
		Long: `Aggregate the audit trail into Prometheus metrics.

Without --listen the metrics are printed once in the text exposition
format. With --listen an HTTP server serves them on /metrics, re-reading
the trail on every scrape.

Examples:
  plangate metrics
  plangate metrics --window 24h
  plangate metrics --listen 127.0.0.1:9464`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := resolveAuditDir(auditDir)
			if err != nil {
				return err
			}

			logger := newLogger(opts, cmd.ErrOrStderr())
			reg := metrics.NewRegistry(metrics.NewCollector(dir, window, logger), withRuntime)

			if listen == "" {
				return metrics.WriteText(cmd.OutOrStdout(), reg)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serveMetrics(ctx, cmd.OutOrStdout(), listen, reg)
		},
	}

	cmd.Flags().StringVar(&auditDir, "audit-dir", "", "Directory containing audit JSONL files (default: $PLANGATE_AUDIT_DIR or ~/.plangate/audit)")
	cmd.Flags().DurationVar(&window, "window", 0, "Only count events newer than this duration (0: all)")
	cmd.Flags().StringVar(&listen, "listen", "", "Serve /metrics on this address instead of printing")
	cmd.Flags().BoolVar(&withRuntime, "runtime", false, "Include Go runtime and process metrics")

	return cmd
}

func serveMetrics(ctx context.Context, w io.Writer, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(w, "Serving metrics on http://%s/metrics\n", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics: shutdown: %w", err)
		}
		return nil
	}
}
