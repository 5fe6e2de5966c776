package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/erauner12/odoosync/internal/auth"
	"github.com/erauner12/odoosync/internal/syncx"
	"github.com/rs/zerolog/log"
)

// Mirror drivers
const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"
)

// Config holds all configuration for odoosync
type Config struct {
	Odoo   OdooConfig
	Mirror MirrorConfig
	Sync   SyncConfig
	Log    LogConfig
	HTTP   HTTPConfig
}

// OdooConfig locates and authenticates against the ERP
type OdooConfig struct {
	URL      string
	Database string
	Username string
	Password string
	Timeout  time.Duration // 0 leaves the HTTP client without a timeout
}

// MirrorConfig selects and locates the mirror store
type MirrorConfig struct {
	Driver      string // rest | postgres
	SupabaseURL string
	SupabaseKey string
	DatabaseURL string
	MaxRPS      int // 0 disables write pacing
}

// SyncConfig controls what is read and how it is written
type SyncConfig struct {
	BatchSize    int
	PageSize     int
	MaxPages     int
	Collections  []string
	Since        string
	Until        string
	LookbackDays int
	CatalogFile  string
}

// LogConfig controls the global logger
type LogConfig struct {
	Level  string
	Format string // console | json
	File   string
}

// HTTPConfig configures the trigger server
type HTTPConfig struct {
	Addr      string
	APISecret string
}

// DefaultConfig returns a configuration with defaults applied
func DefaultConfig() *Config {
	return &Config{
		Mirror: MirrorConfig{Driver: DriverREST},
		Sync: SyncConfig{
			BatchSize: 500,
			PageSize:  500,
			MaxPages:  1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

// Validate checks everything a sync needs: ERP credentials, a usable mirror and a sane window
func (c *Config) Validate() error {
	if err := c.Odoo.Validate(); err != nil {
		return err
	}
	if err := c.Mirror.Validate(); err != nil {
		return err
	}
	if c.Sync.PageSize <= 0 {
		return ErrInvalidPageSize
	}
	if _, err := c.Sync.Window(time.Now()); err != nil {
		return err
	}
	return nil
}

// ValidateServe additionally requires the trigger-server secret
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.HTTP.APISecret == "" {
		return ErrMissingAPISecret
	}
	return nil
}

// Validate checks the ERP settings
func (o *OdooConfig) Validate() error {
	if o.URL == "" {
		return ErrMissingOdooURL
	}
	if u, err := url.Parse(o.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute URL", ErrMissingOdooURL, o.URL)
	}
	if o.Database == "" {
		return ErrMissingOdooDatabase
	}
	if o.Username == "" || o.Password == "" {
		return ErrMissingOdooCredentials
	}
	return nil
}

// Validate checks the mirror settings for the selected driver.
// An expired Supabase key is fatal; an anon key only warns.
func (m *MirrorConfig) Validate() error {
	switch m.Driver {
	case DriverREST:
		if m.SupabaseURL == "" {
			return ErrMissingSupabaseURL
		}
		if m.SupabaseKey == "" {
			return ErrMissingSupabaseKey
		}
		info, err := auth.InspectAPIKey(m.SupabaseKey, time.Now())
		if err != nil {
			return err
		}
		if info.IsAnon() {
			log.Warn().Msg("SUPABASE_KEY has the anon role; upserts will fail unless row level security allows them")
		}
	case DriverPostgres:
		if m.DatabaseURL == "" {
			return ErrMissingMirrorDatabaseURL
		}
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownMirrorDriver, m.Driver)
	}
	return nil
}

// Window resolves the configured date window. SYNC_SINCE/SYNC_UNTIL and
// SYNC_LOOKBACK_DAYS are mutually exclusive.
func (s *SyncConfig) Window(now time.Time) (syncx.Window, error) {
	if s.LookbackDays < 0 {
		return syncx.Window{}, fmt.Errorf("%w: SYNC_LOOKBACK_DAYS must not be negative", ErrInvalidWindow)
	}
	if s.LookbackDays > 0 {
		if s.Since != "" || s.Until != "" {
			return syncx.Window{}, fmt.Errorf("%w: SYNC_LOOKBACK_DAYS cannot be combined with SYNC_SINCE/SYNC_UNTIL", ErrInvalidWindow)
		}
		return syncx.LookbackWindow(now, s.LookbackDays), nil
	}
	w, err := syncx.DateWindow(s.Since, s.Until)
	if err != nil {
		return syncx.Window{}, fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}
	return w, nil
}
