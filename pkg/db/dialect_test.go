package db

import (
	"testing"

	"github.com/smallbiznis/wastebill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	for _, typ := range []string{"postgres", "sqlite"} {
		d, err := Dialect(config.Config{DBType: typ, DBPath: ":memory:"})
		require.NoError(t, err, typ)
		assert.Equal(t, typ, d.Name())
	}

	_, err := Dialect(config.Config{DBType: "mysql"})
	assert.EqualError(t, err, "unsupported mysql type")
}
