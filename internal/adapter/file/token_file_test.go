package file_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/adapter/file"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
)

func TestTokenFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	store := file.NewTokenFile(path)

	record, err := store.ReadToken(ctx)
	require.NoError(t, err)
	require.Nil(t, record)

	want := domain.TokenRecord{AccessToken: "AT", RefreshToken: "RT", ExpiresIn: 3600, TokenType: "Bearer", UpdatedAt: 1722800000000}
	require.NoError(t, store.WriteToken(ctx, want))

	got, err := store.ReadToken(ctx)
	require.NoError(t, err)
	require.Equal(t, want, *got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"access_token", "refresh_token", "expires_in", "token_type", "updated_at"} {
		require.Contains(t, fields, key)
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestTokenFileOverwrites(t *testing.T) {
	ctx := context.Background()
	store := file.NewTokenFile(filepath.Join(t.TempDir(), "tokens.json"))

	require.NoError(t, store.WriteToken(ctx, domain.TokenRecord{AccessToken: "old"}))
	require.NoError(t, store.WriteToken(ctx, domain.TokenRecord{AccessToken: "new"}))

	got, err := store.ReadToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "new", got.AccessToken)

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestTokenFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := file.NewTokenFile(path).ReadToken(context.Background())
	require.Error(t, err)
}

func TestTokenFileUnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	store := file.NewTokenFile(filepath.Join(blocker, "tokens.json"))
	require.Error(t, store.WriteToken(context.Background(), domain.TokenRecord{AccessToken: "AT"}))
}
