package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/erauner12/odoosync/internal/config"
	"github.com/erauner12/odoosync/internal/mirror"
	"github.com/erauner12/odoosync/internal/odoo"
	"github.com/erauner12/odoosync/internal/odoo/odootest"
	"github.com/erauner12/odoosync/internal/service/syncservice"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnv = []string{
	"ODOO_URL", "ODOO_DB", "ODOO_USERNAME", "ODOO_PASSWORD", "ODOO_TIMEOUT",
	"MIRROR_DRIVER", "SUPABASE_URL", "SUPABASE_KEY", "MIRROR_DATABASE_URL", "MIRROR_MAX_RPS",
	"SYNC_BATCH_SIZE", "SYNC_PAGE_SIZE", "SYNC_MAX_PAGES", "SYNC_COLLECTIONS",
	"SYNC_SINCE", "SYNC_UNTIL", "SYNC_LOOKBACK_DAYS", "SYNC_CATALOG_FILE",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "HTTP_ADDR", "SYNC_API_SECRET",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "warn")
}

// fakeMirror accepts PostgREST upserts and remembers how many rows each table received
type fakeMirror struct {
	*httptest.Server
	mu   sync.Mutex
	rows map[string]int
}

func newFakeMirror(t *testing.T) *fakeMirror {
	t.Helper()
	m := &fakeMirror{rows: make(map[string]int)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, mirror.RESTPath) {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		var rows []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.rows[strings.TrimPrefix(r.URL.Path, mirror.RESTPath)] += len(rows)
		m.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *fakeMirror) count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[table]
}

func configure(t *testing.T, erpURL, mirrorURL string) {
	t.Helper()
	clearEnv(t)
	t.Setenv("ODOO_URL", erpURL)
	t.Setenv("ODOO_DB", odootest.Database)
	t.Setenv("ODOO_USERNAME", odootest.Username)
	t.Setenv("ODOO_PASSWORD", odootest.Password)
	t.Setenv("SUPABASE_URL", mirrorURL)
	t.Setenv("SUPABASE_KEY", "sb_secret_test")
	t.Setenv("SYNC_PAGE_SIZE", "50")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeApp(t, args...)
	return out, err
}

func executeApp(t *testing.T, args ...string) (string, *app, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := &app{}
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	require.NoError(t, a.closeLog())
	return out.String(), a, err
}

func TestSyncCommand(t *testing.T) {
	erp := odootest.NewServer(t)
	erp.Seed("pos.order", 120, func(id int) map[string]any {
		return map[string]any{"name": "POS", "amount_total": 3.5, "state": "paid"}
	})
	erp.AddRecords("product.product", map[string]any{"id": 1, "name": "Paracetamol", "active": true, "list_price": -5})
	mirrorSrv := newFakeMirror(t)
	configure(t, erp.URL, mirrorSrv.URL)

	out, err := execute(t, "sync", "orders", "products")
	require.NoError(t, err)

	assert.Equal(t, 120, mirrorSrv.count("aumet_sales_orders"))
	assert.Equal(t, 1, mirrorSrv.count("aumet_products"))
	// 120 records in pages of 50
	assert.Equal(t, 3, erp.Calls("pos.order.search_read"))
	assert.Contains(t, out, "aumet_sales_orders")
	assert.Contains(t, out, "TOTAL")
}

func TestSyncCommand_UsesConfiguredCollections(t *testing.T) {
	erp := odootest.NewServer(t)
	erp.AddRecords("product.product")
	mirrorSrv := newFakeMirror(t)
	configure(t, erp.URL, mirrorSrv.URL)
	t.Setenv("SYNC_COLLECTIONS", "products")

	_, err := execute(t, "sync")
	require.NoError(t, err)
	assert.Equal(t, 1, erp.Calls("common.authenticate"))
	assert.Equal(t, 1, erp.Calls("product.product.search"))
}

func TestSyncCommand_BatchFailureExitsZero(t *testing.T) {
	erp := odootest.NewServer(t)
	erp.Seed("pos.order", 5, func(id int) map[string]any { return map[string]any{"name": "POS"} })
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value"}`))
	}))
	t.Cleanup(rejecting.Close)
	configure(t, erp.URL, rejecting.URL)

	out, err := execute(t, "sync", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "aumet_sales_orders")
}

func TestSyncCommand_FatalErrors(t *testing.T) {
	erp := odootest.NewServer(t)
	erp.AddRecords("pos.order")
	mirrorSrv := newFakeMirror(t)

	t.Run("bad credentials", func(t *testing.T) {
		configure(t, erp.URL, mirrorSrv.URL)
		t.Setenv("ODOO_PASSWORD", "wrong")

		_, err := execute(t, "sync", "orders")
		var authErr odoo.AuthError
		assert.True(t, errors.As(err, &authErr), "got %v", err)
	})

	t.Run("log file released after failure", func(t *testing.T) {
		configure(t, erp.URL, mirrorSrv.URL)
		t.Setenv("ODOO_PASSWORD", "wrong")
		file := filepath.Join(t.TempDir(), "odoosync.log")
		t.Setenv("LOG_FILE", file)

		_, a, err := executeApp(t, "sync", "orders")
		require.Error(t, err)
		assert.Nil(t, a.logCloser, "closer must be consumed")

		data, readErr := os.ReadFile(file)
		require.NoError(t, readErr)
		assert.Contains(t, string(data), "erp authentication failed")
	})

	t.Run("unknown collection", func(t *testing.T) {
		configure(t, erp.URL, mirrorSrv.URL)
		before := erp.Calls("common.authenticate")

		_, err := execute(t, "sync", "orders", "refunds")
		assert.ErrorIs(t, err, syncservice.ErrUnknownCollection)
		assert.Equal(t, before, erp.Calls("common.authenticate"), "no ERP traffic for an unknown collection")
	})

	t.Run("missing configuration", func(t *testing.T) {
		clearEnv(t)
		_, err := execute(t, "sync")
		assert.ErrorIs(t, err, config.ErrMissingOdooURL)
	})

	t.Run("unreadable config file", func(t *testing.T) {
		clearEnv(t)
		_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "collections")
		assert.ErrorIs(t, err, config.ErrConfigFileNotFound)
	})
}

func TestCheckCommand(t *testing.T) {
	erp := odootest.NewServer(t)
	erp.Seed("product.product", 4, func(id int) map[string]any { return map[string]any{"active": true} })
	counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			assert.Equal(t, "aumet_id.desc", r.URL.Query().Get("order"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"aumet_id":4}]`))
			return
		}
		w.Header().Set("Content-Range", "*/3")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(counting.Close)
	configure(t, erp.URL, counting.URL)
	t.Setenv("SYNC_COLLECTIONS", "products")

	out, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ERP 17.0")
	assert.Contains(t, out, "aumet_products")
	assert.Regexp(t, `aumet_products\s+4\s+3\s+1\s+4`, out)
}

func TestCollectionsCommand(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
collections:
  - name: refunds
    model: account.move
    table: aumet_refunds
    columns:
      - name: aumet_id
        sources: [id]
        kind: ref
`), 0o600))
	t.Setenv("SYNC_CATALOG_FILE", path)

	out, err := execute(t, "collections")
	require.NoError(t, err)
	for _, want := range []string{"orders", "pos.order", "inventory", "stock.quant", "refunds", "aumet_refunds"} {
		assert.Contains(t, out, want)
	}
}

func TestSetupLogging(t *testing.T) {
	t.Run("json with file sink", func(t *testing.T) {
		var buf bytes.Buffer
		file := filepath.Join(t.TempDir(), "odoosync.log")
		closer, err := setupLogging(config.LogConfig{Level: "debug", Format: "json", File: file}, &buf)
		require.NoError(t, err)

		log.Info().Msg("hello")
		require.NoError(t, closer.Close())

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
		assert.Equal(t, "odoosync", entry["service"])
		assert.Equal(t, "hello", entry["message"])

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"hello"`)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := setupLogging(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := setupLogging(config.LogConfig{Format: "xml"}, &bytes.Buffer{})
		assert.Error(t, err)
	})
}
