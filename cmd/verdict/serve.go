package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dealdesk/verdict/internal/fingerprint"
	"github.com/dealdesk/verdict/internal/history"
	"github.com/dealdesk/verdict/internal/memory"
	"github.com/dealdesk/verdict/internal/policy"
	"github.com/dealdesk/verdict/internal/server"
)

const memorySweepInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the evaluation HTTP API",
	Long: `Start the HTTP API serving deal evaluation and vertical resolution.

Configuration comes from flags or VERDICT_* environment variables:
  VERDICT_LISTEN          listen address (default :8420)
  VERDICT_DB              database path
  VERDICT_POLICY_FILE     external policy set (default: embedded)
  VERDICT_RATE_LIMIT_RPM  per-tenant requests/minute, 0 disables
  VERDICT_API_KEYS        accepted API keys, empty runs open`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStorage(ctx)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer st.Close()

		set, err := loadPolicySet()
		if err != nil {
			return fmt.Errorf("failed to load policy set: %w", err)
		}
		resolver, err := policy.NewResolver(set)
		if err != nil {
			return fmt.Errorf("failed to build resolver: %w", err)
		}

		dedupCfg, err := fingerprint.ConfigFromEnv()
		if err != nil {
			return err
		}

		memoryStore := memory.NewStore(st)
		var opts []server.Option
		if rpm := viper.GetInt("rate-limit-rpm"); rpm > 0 {
			opts = append(opts, server.WithRateLimiter(server.NewRateLimiter(rpm)))
		}
		if keys := viper.GetStringSlice("api-keys"); len(keys) > 0 {
			opts = append(opts, server.WithAPIKeys(keys))
		}
		srv := server.NewServer(
			memoryStore,
			fingerprint.NewEngine(st, dedupCfg),
			history.NewFinder(st, history.DefaultConfig()),
			resolver,
			opts...,
		)

		// Space reclamation only; reads already treat expired entries as absent
		go func() {
			ticker := time.NewTicker(memorySweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					purged, err := memoryStore.PurgeExpired(ctx)
					if err != nil {
						log.Warn().Err(err).Msg("memory sweep failed")
						continue
					}
					if purged > 0 {
						log.Info().Int64("purged", purged).Msg("purged expired memory entries")
					}
				}
			}
		}()

		addr := viper.GetString("listen")
		httpSrv := &http.Server{
			Addr:              addr,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", addr).Int("personas", len(set.Personas)).Msg("verdict listening")
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", ":8420", "listen address")
	serveCmd.Flags().Int("rate-limit-rpm", 0, "per-tenant requests per minute (0 disables)")
	serveCmd.Flags().StringSlice("api-keys", nil, "accepted API keys (empty runs open)")
	_ = viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("rate-limit-rpm", serveCmd.Flags().Lookup("rate-limit-rpm"))
	_ = viper.BindPFlag("api-keys", serveCmd.Flags().Lookup("api-keys"))
	rootCmd.AddCommand(serveCmd)
}
