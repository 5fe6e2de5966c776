package syncx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateWindow(t *testing.T) {
	tests := []struct {
		name      string
		since     string
		until     string
		wantSince string
		wantUntil string
		wantErr   bool
	}{
		{
			name:      "both bounds, until inclusive",
			since:     "2024-11-24",
			until:     "2024-12-06",
			wantSince: "2024-11-24 00:00:00",
			wantUntil: "2024-12-07 00:00:00",
		},
		{
			name:      "since only",
			since:     "2024-11-24",
			wantSince: "2024-11-24 00:00:00",
		},
		{
			name: "unbounded",
		},
		{
			name:    "malformed since",
			since:   "24/11/2024",
			wantErr: true,
		},
		{
			name:    "inverted",
			since:   "2024-12-06",
			until:   "2024-11-24",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := DateWindow(tt.since, tt.until)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantSince == "" {
				assert.True(t, w.Since.IsZero())
			} else {
				assert.Equal(t, tt.wantSince, FormatERP(w.Since))
			}
			if tt.wantUntil == "" {
				assert.True(t, w.Until.IsZero())
			} else {
				assert.Equal(t, tt.wantUntil, FormatERP(w.Until))
			}
		})
	}
}

func TestLookbackWindow(t *testing.T) {
	now := time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)

	w := LookbackWindow(now, 7)
	assert.Equal(t, "2026-10-11 00:00:00", FormatERP(w.Since))
	assert.True(t, w.Until.IsZero())

	assert.True(t, LookbackWindow(now, 0).IsZero())
}

func TestRFC3339(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		want string
	}{
		{"normal timestamp", 1730635200000, "2024-11-03T12:00:00Z"},
		{"epoch", 0, "1970-01-01T00:00:00Z"},
		{"with milliseconds", 1730635200123, "2024-11-03T12:00:00.123Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RFC3339(tt.ms))
		})
	}
}

func TestNowMs(t *testing.T) {
	before := NowMs()
	after := NowMs()

	if after < before {
		t.Error("NowMs() went backwards in time")
	}
}
