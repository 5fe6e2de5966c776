package main

import (
	"github.com/erauner12/odoosync/internal/service/syncservice"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (a *app) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [collection...]",
		Short: "Mirror collections from the ERP into the reporting store",
		Long: `Sync reads each named collection (all of SYNC_COLLECTIONS, or the whole
catalog, when none are named) and upserts it into its mirror table.

Failed upsert batches and per-collection ERP errors are reported in the summary
and do not change the exit status. Authentication failures, missing
configuration and unknown collections exit non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = a.cfg.Sync.Collections
			}
			cols, err := cat.Select(names)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			runner, release, err := a.runner(ctx, a.erp())
			if err != nil {
				return err
			}
			defer release()

			summaries, runErr := runner.RunAll(ctx, cols)
			if err := syncservice.WriteSummary(cmd.OutOrStdout(), summaries); err != nil {
				log.Error().Err(err).Msg("failed to print summary")
			}
			for _, s := range summaries {
				switch {
				case s.Failed():
					log.Error().Str("collection", s.Collection).Str("error", s.Error).Msg("collection failed")
				case len(s.FailedBatches) > 0 || s.Error != "":
					log.Warn().
						Str("collection", s.Collection).
						Int("failed_batches", len(s.FailedBatches)).
						Str("error", s.Error).
						Msg("collection completed with errors")
				}
			}
			if syncservice.IsFatal(runErr) {
				log.Error().Err(runErr).Msg("credentials rejected, check the ODOO_* and mirror settings")
			}
			return runErr
		},
	}
}
