package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/erauner12/odoosync/internal/config"
	"github.com/erauner12/odoosync/internal/db"
	"github.com/erauner12/odoosync/internal/mirror"
	"github.com/erauner12/odoosync/internal/odoo"
	"github.com/erauner12/odoosync/internal/service/syncservice"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app carries state shared by every subcommand once the root pre-run has loaded it
type app struct {
	configPath string
	cfg        *config.Config
	logCloser  io.Closer
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "odoosync",
		Short: "Mirror Odoo collections into a Supabase/Postgres reporting store",
		Long: `odoosync reads collections (orders, customers, products, inventory, ...)
from an Odoo ERP over JSON-RPC and upserts them into mirror tables keyed on
the ERP id. Configuration comes from environment variables, optionally seeded
from a config file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			closer, err := setupLogging(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logCloser = closer
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "optional config file (yaml, json or toml); environment variables override it")

	cmd.AddCommand(a.syncCmd())
	cmd.AddCommand(a.checkCmd())
	cmd.AddCommand(a.collectionsCmd())
	cmd.AddCommand(a.serveCmd())
	return cmd
}

// closeLog releases the log file sink. Cobra skips post-run hooks when a
// command fails, so callers run this after Execute returns.
func (a *app) closeLog() error {
	if a.logCloser == nil {
		return nil
	}
	err := a.logCloser.Close()
	a.logCloser = nil
	return err
}

// catalog builds the built-in catalog with configured defaults, then applies SYNC_CATALOG_FILE
func (a *app) catalog() (*syncservice.Catalog, error) {
	d := syncservice.Defaults{
		PageSize:  a.cfg.Sync.PageSize,
		MaxPages:  a.cfg.Sync.MaxPages,
		BatchSize: a.cfg.Sync.BatchSize,
	}
	cat, err := syncservice.NewCatalog(d, syncservice.Builtin()...)
	if err != nil {
		return nil, err
	}
	if a.cfg.Sync.CatalogFile == "" {
		return cat, nil
	}
	cat, err = syncservice.LoadCatalogFile(a.cfg.Sync.CatalogFile, cat, d)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", a.cfg.Sync.CatalogFile).Strs("collections", cat.Names()).Msg("catalog overrides applied")
	return cat, nil
}

// erp creates the JSON-RPC client. A zero ODOO_TIMEOUT leaves requests unbounded
// except by cancellation.
func (a *app) erp() *odoo.Client {
	return odoo.NewClient(a.cfg.Odoo.URL, &http.Client{Timeout: a.cfg.Odoo.Timeout})
}

// destination opens the configured mirror store. The returned func releases it.
func (a *app) destination(ctx context.Context) (mirror.Destination, func(), error) {
	switch a.cfg.Mirror.Driver {
	case config.DriverREST:
		dest := mirror.NewRESTClient(a.cfg.Mirror.SupabaseURL, a.cfg.Mirror.SupabaseKey, &http.Client{Timeout: 60 * time.Second})
		return dest, func() {}, nil
	case config.DriverPostgres:
		pool, err := db.Open(ctx, a.cfg.Mirror.DatabaseURL, db.Options{})
		if err != nil {
			return nil, nil, err
		}
		return mirror.NewPGDestination(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: got %q", config.ErrUnknownMirrorDriver, a.cfg.Mirror.Driver)
}

// runner wires ERP client, mirror writer and date window
func (a *app) runner(ctx context.Context, erp *odoo.Client) (*syncservice.Runner, func(), error) {
	window, err := a.cfg.Sync.Window(time.Now())
	if err != nil {
		return nil, nil, err
	}
	dest, closeDest, err := a.destination(ctx)
	if err != nil {
		return nil, nil, err
	}
	creds := syncservice.Credentials{
		Database: a.cfg.Odoo.Database,
		Username: a.cfg.Odoo.Username,
		Password: a.cfg.Odoo.Password,
	}
	if !window.IsZero() {
		log.Info().Time("since", window.Since).Time("until", window.Until).Msg("date window active")
	}
	return syncservice.NewRunner(erp, creds, mirror.NewWriter(dest, a.cfg.Mirror.MaxRPS), window), closeDest, nil
}
