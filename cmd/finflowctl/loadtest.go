package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/finflow/authcore"
	"github.com/finflow/authcore/credential"
	"github.com/finflow/authcore/metrics/export/prometheus"
	"github.com/spf13/cobra"
)

func newLoadTestCmd(a *app) *cobra.Command {
	var (
		concurrency int
		ops         int
		expire      bool
		showMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Fire concurrent profile requests with the stored session",
		Long: `loadtest sends --ops profile requests from --concurrency workers using the
stored session. With --expire the stored access token is replaced by an
invalid one first, so every worker hits a 401 at once and the run shows how
many refreshes the burst caused.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if concurrency <= 0 || ops <= 0 {
				return errors.New("concurrency and ops must be > 0")
			}
			core, err := a.core()
			if err != nil {
				return err
			}
			defer core.Close()

			ctx := cmd.Context()
			creds, err := credential.Load(ctx, core.CredentialStore())
			if err != nil {
				return err
			}
			if creds.AccessToken == "" && creds.RefreshToken == "" {
				return errors.New("not logged in")
			}
			if expire {
				if err := core.CredentialStore().SetAccessToken(ctx, "expired-"+creds.AccessToken); err != nil {
					return err
				}
			}

			stats := runProfilePhase(ctx, core, ops, concurrency)
			snap := core.MetricsSnapshot()

			fmt.Fprintln(a.out, "---- results ----")
			fmt.Fprintf(a.out, "profile: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
				stats.ops,
				stats.failures,
				stats.total.Round(time.Millisecond),
				stats.opsPerS,
				stats.p50.Round(time.Microsecond),
				stats.p95.Round(time.Microsecond),
				stats.p99.Round(time.Microsecond),
			)
			fmt.Fprintf(a.out, "refresh: started=%d shared=%d success=%d failure=%d\n",
				snap.Counters[authcore.MetricRefreshStarted],
				snap.Counters[authcore.MetricRefreshShared],
				snap.Counters[authcore.MetricRefreshSuccess],
				snap.Counters[authcore.MetricRefreshFailure],
			)
			if showMetrics {
				fmt.Fprint(a.out, prometheus.NewPrometheusExporter(core).Render())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 32, "number of concurrent workers")
	cmd.Flags().IntVar(&ops, "ops", 256, "total profile requests")
	cmd.Flags().BoolVar(&expire, "expire", false, "invalidate the stored access token before the run")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print all counters in Prometheus format")
	return cmd
}

func runProfilePhase(ctx context.Context, core *authcore.Core, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops || ctx.Err() != nil {
					return
				}
				t0 := time.Now()
				_, err := core.Gateway().GetProfile(ctx)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}
