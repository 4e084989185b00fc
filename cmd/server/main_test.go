package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/minefund-backend/internal/adapter/repository/memory"
	"github.com/simaogato/minefund-backend/internal/testutil"
)

func TestHTTPRouter(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		ping       func(ctx context.Context) error
		wantStatus int
	}{
		{"healthz", "/healthz", func(context.Context) error { return errors.New("down") }, http.StatusOK},
		{"ready", "/readyz", func(context.Context) error { return nil }, http.StatusOK},
		{"not ready", "/readyz", func(context.Context) error { return errors.New("down") }, http.StatusServiceUnavailable},
		{"metrics", "/metrics", func(context.Context) error { return nil }, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newHTTPRouter(tt.ping).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestSeedAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
accounts:
  - id: 00000000-0000-0000-0000-0000000000a1
    name: Pool A
    currency: USDT
    balance: "100"
    funding_source: true
    priority: 1
`), 0o600))

	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, seedAccounts(ctx, testutil.NewLogger(), path, store.Accounts()))
	// Second run leaves the stored account alone
	require.NoError(t, seedAccounts(ctx, testutil.NewLogger(), path, store.Accounts()))

	sources, err := store.Accounts().LockFundingSources(ctx, "USDT")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "100", sources[0].Balance.String())
}

func TestSeedAccounts_MissingFile(t *testing.T) {
	err := seedAccounts(context.Background(), testutil.NewLogger(), filepath.Join(t.TempDir(), "none.yaml"), memory.NewStore().Accounts())

	assert.ErrorContains(t, err, "failed to open accounts file")
}
