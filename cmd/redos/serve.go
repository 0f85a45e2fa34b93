package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/KromDaniel/redos/internal/cache"
	"github.com/KromDaniel/redos/internal/config"
	"github.com/KromDaniel/redos/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr            string
		rateLimit       float64
		burst           int
		cacheDir        string
		cacheTTL        time.Duration
		analysisTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analyses over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var file config.File
			if a.file != nil {
				file = *a.file
			}
			cfg := server.Config{
				Addr:            pick(cmd, "addr", addr, file.Server.Addr),
				RateLimit:       pick(cmd, "rate-limit", rateLimit, file.Server.RateLimit),
				Burst:           pick(cmd, "burst", burst, file.Server.Burst),
				MaxBodyBytes:    file.Server.MaxBodyBytes,
				AnalysisTimeout: pick(cmd, "analysis-timeout", analysisTimeout, file.Server.AnalysisTimeout),
				Registerer:      a.telemetry.Registerer(),
				MetricsHandler:  a.telemetry.MetricsHandler(),
				Logger:          a.log,
			}
			cacheDir = pick(cmd, "cache-dir", cacheDir, file.Cache.Dir)
			cacheTTL = pick(cmd, "cache-ttl", cacheTTL, file.Cache.TTL)

			analyzer, err := a.analyzer(nil)
			if err != nil {
				return err
			}
			if cacheDir != "" {
				c, err := cache.Open(cache.Config{Path: cacheDir, TTL: cacheTTL, Logger: a.log})
				if err != nil {
					return err
				}
				defer c.Close()
				cfg.Cache = c
			}

			srv, err := server.New(analyzer, cfg)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", server.DefaultAddr, "listen address")
	f.Float64Var(&rateLimit, "rate-limit", 0, "requests per second; 0 disables limiting")
	f.IntVar(&burst, "burst", 1, "requests allowed above the rate limit in a burst")
	f.StringVar(&cacheDir, "cache-dir", "", "persist verdicts in this directory")
	f.DurationVar(&cacheTTL, "cache-ttl", 0, "expire cached verdicts after this long; 0 keeps them")
	f.DurationVar(&analysisTimeout, "analysis-timeout", server.DefaultAnalysisTimeout, "bound on one shared analysis")
	return cmd
}

// pick prefers an explicitly set flag over the file value.
func pick[T comparable](cmd *cobra.Command, name string, flag, file T) T {
	var zero T
	if cmd.Flags().Changed(name) || file == zero {
		return flag
	}
	return file
}
