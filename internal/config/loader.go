package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// maxBatchSize is the upper bound on SYNC_BATCH_SIZE
const maxBatchSize = 1000

// Load reads an optional config file (yaml, json or toml by extension) and then
// applies environment variables, which always win. Validation is left to the caller
// so each command can require only what it uses.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				return nil, ErrConfigFileNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
		}
	}

	return fromViper(v)
}

// LoadFromEnvironment builds configuration from environment variables only
func LoadFromEnvironment() (*Config, error) {
	return Load("")
}

func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("mirror_driver", d.Mirror.Driver)
	v.SetDefault("sync_batch_size", d.Sync.BatchSize)
	v.SetDefault("sync_page_size", d.Sync.PageSize)
	v.SetDefault("sync_max_pages", d.Sync.MaxPages)
	v.SetDefault("log_level", d.Log.Level)
	v.SetDefault("log_format", d.Log.Format)
	v.SetDefault("http_addr", d.HTTP.Addr)

	// Bound so AllKeys lists every supported variable
	for _, key := range []string{
		"odoo_url", "odoo_db", "odoo_username", "odoo_password", "odoo_timeout",
		"supabase_url", "supabase_key", "mirror_database_url", "mirror_max_rps",
		"sync_collections", "sync_since", "sync_until", "sync_lookback_days", "sync_catalog_file",
		"log_file", "sync_api_secret",
	} {
		_ = v.BindEnv(key)
	}
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	timeout, err := parseTimeout(v.GetString("odoo_timeout"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Odoo: OdooConfig{
			URL:      strings.TrimSpace(v.GetString("odoo_url")),
			Database: v.GetString("odoo_db"),
			Username: v.GetString("odoo_username"),
			Password: v.GetString("odoo_password"),
			Timeout:  timeout,
		},
		Mirror: MirrorConfig{
			Driver:      strings.ToLower(strings.TrimSpace(v.GetString("mirror_driver"))),
			SupabaseURL: strings.TrimSpace(v.GetString("supabase_url")),
			SupabaseKey: strings.TrimSpace(v.GetString("supabase_key")),
			DatabaseURL: v.GetString("mirror_database_url"),
			MaxRPS:      v.GetInt("mirror_max_rps"),
		},
		Sync: SyncConfig{
			BatchSize:    normalizeBatchSize(v.GetInt("sync_batch_size")),
			PageSize:     v.GetInt("sync_page_size"),
			MaxPages:     v.GetInt("sync_max_pages"),
			Collections:  collectionList(v.Get("sync_collections")),
			Since:        strings.TrimSpace(v.GetString("sync_since")),
			Until:        strings.TrimSpace(v.GetString("sync_until")),
			LookbackDays: v.GetInt("sync_lookback_days"),
			CatalogFile:  v.GetString("sync_catalog_file"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log_level")),
			Format: strings.ToLower(v.GetString("log_format")),
			File:   v.GetString("log_file"),
		},
		HTTP: HTTPConfig{
			Addr:      v.GetString("http_addr"),
			APISecret: v.GetString("sync_api_secret"),
		},
	}
	return cfg, nil
}

// parseTimeout accepts a Go duration ("45s") or a bare number of seconds
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("ODOO_TIMEOUT must not be negative")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid ODOO_TIMEOUT %q", s)
	}
	return d, nil
}

func normalizeBatchSize(n int) int {
	switch {
	case n <= 0:
		return DefaultConfig().Sync.BatchSize
	case n > maxBatchSize:
		log.Warn().Int("requested", n).Int("max", maxBatchSize).Msg("SYNC_BATCH_SIZE above maximum, clamping")
		return maxBatchSize
	}
	return n
}

// collectionList accepts a YAML list from a config file or a comma-separated env value
func collectionList(raw any) []string {
	switch val := raw.(type) {
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
		return splitList(strings.Join(parts, ","))
	case []string:
		return splitList(strings.Join(val, ","))
	case string:
		return splitList(val)
	}
	return nil
}

// splitList splits a comma-separated list, trimming whitespace and dropping empties
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
