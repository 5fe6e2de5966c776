package config

import "errors"

var (
	// ErrMissingOdooURL indicates that ODOO_URL is not configured
	ErrMissingOdooURL = errors.New("ODOO_URL is required")

	// ErrMissingOdooDatabase indicates that ODOO_DB is not configured
	ErrMissingOdooDatabase = errors.New("ODOO_DB is required")

	// ErrMissingOdooCredentials indicates that ODOO_USERNAME or ODOO_PASSWORD is not configured
	ErrMissingOdooCredentials = errors.New("ODOO_USERNAME and ODOO_PASSWORD are required")

	// ErrUnknownMirrorDriver indicates MIRROR_DRIVER is neither rest nor postgres
	ErrUnknownMirrorDriver = errors.New("MIRROR_DRIVER must be rest or postgres")

	// ErrMissingSupabaseURL indicates that SUPABASE_URL is not configured for the rest driver
	ErrMissingSupabaseURL = errors.New("SUPABASE_URL is required when MIRROR_DRIVER=rest")

	// ErrMissingSupabaseKey indicates that SUPABASE_KEY is not configured for the rest driver
	ErrMissingSupabaseKey = errors.New("SUPABASE_KEY is required when MIRROR_DRIVER=rest")

	// ErrMissingMirrorDatabaseURL indicates that MIRROR_DATABASE_URL is not configured for the postgres driver
	ErrMissingMirrorDatabaseURL = errors.New("MIRROR_DATABASE_URL is required when MIRROR_DRIVER=postgres")

	// ErrInvalidPageSize indicates SYNC_PAGE_SIZE is not positive
	ErrInvalidPageSize = errors.New("SYNC_PAGE_SIZE must be positive")

	// ErrInvalidWindow indicates the date window settings cannot be combined or parsed
	ErrInvalidWindow = errors.New("invalid sync date window")

	// ErrMissingAPISecret indicates SYNC_API_SECRET is not configured for serve
	ErrMissingAPISecret = errors.New("SYNC_API_SECRET is required for serve")

	// ErrConfigFileNotFound indicates that the config file was not found
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFormat indicates that the config file could not be parsed
	ErrInvalidConfigFormat = errors.New("invalid configuration file format")
)
