package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/erauner12/odoosync/internal/auth"
	"github.com/erauner12/odoosync/internal/httpapi"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP trigger server",
		Long: `Serve exposes authenticated endpoints for triggering syncs and reading
mirror counts. Requests need an HS256 bearer token signed with SYNC_API_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateServe(); err != nil {
				return err
			}
			cat, err := a.catalog()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			runner, release, err := a.runner(ctx, a.erp())
			if err != nil {
				return err
			}
			defer release()

			srv := &httpapi.Server{
				Catalog:         cat,
				Runner:          runner,
				RateLimitConfig: httpapi.DefaultRateLimitConfig,
				Lifetime:        ctx,
			}
			httpServer := &http.Server{
				Addr:              a.cfg.HTTP.Addr,
				Handler:           srv.Routes(auth.JWTCfg{HS256Secret: a.cfg.HTTP.APISecret}),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				// no WriteTimeout: a triggered sync answers only when it finishes
				IdleTimeout: 120 * time.Second,
			}
			return serve(ctx, httpServer)
		},
	}
}

// serve runs s until ctx is cancelled, then shuts it down gracefully
func serve(ctx context.Context, s *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr).Msg("starting HTTP server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
