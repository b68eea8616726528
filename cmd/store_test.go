package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadreport/internal/config"
)

func TestInitStore_SQLiteDefaultDSN(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg = &config.Config{}
	cfg.Store.Driver = "sqlite"

	st, err := initStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Migrate(context.Background()))

	_, err = os.Stat(filepath.Join(dir, "leadreport.db"))
	require.NoError(t, err)
}

func TestInitStore_UnknownDriver(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg = &config.Config{}
	cfg.Store.Driver = "oracle"

	_, err := initStore(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported store driver")
}
