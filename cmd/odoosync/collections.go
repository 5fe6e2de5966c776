package main

import (
	"github.com/erauner12/odoosync/internal/service/syncservice"
	"github.com/spf13/cobra"
)

func (a *app) collectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections this process can sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			return syncservice.WriteCatalog(cmd.OutOrStdout(), cat.All())
		},
	}
}
