package main

import (
	"fmt"

	"github.com/erauner12/odoosync/internal/service/syncservice"
	"github.com/spf13/cobra"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify ERP access and compare ERP and mirror row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			cols, err := cat.Select(a.cfg.Sync.Collections)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			erp := a.erp()
			version, err := erp.Version(ctx)
			if err != nil {
				return fmt.Errorf("erp version: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ERP %s at %s\n", versionString(version), a.cfg.Odoo.URL)

			runner, release, err := a.runner(ctx, erp)
			if err != nil {
				return err
			}
			defer release()

			counts, err := runner.Check(ctx, cols)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "authenticated as %s on %s\n\n", a.cfg.Odoo.Username, a.cfg.Odoo.Database)
			return syncservice.WriteCounts(out, counts)
		},
	}
}

func versionString(v map[string]any) string {
	if s, ok := v["server_version"].(string); ok && s != "" {
		return s
	}
	return "(unknown version)"
}
