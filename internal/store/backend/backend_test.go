package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/store/storetest"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
)

func TestOpenMemoryAndSQLite(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{"memory", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Storage.Driver = driver
			cfg.SQLite.Path = filepath.Join(t.TempDir(), "docs.db")

			o, err := Open(ctx, cfg)
			require.NoError(t, err)
			assert.Nil(t, o.DB)

			require.NoError(t, o.Store.Put(ctx, storetest.Doc("a", 42)))
			n, err := o.Store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.NoError(t, o.Close())
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Driver = "mongo"
	_, err := Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "mongo")
}
