package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/nice-pea/npc/internal/config"
	"github.com/nice-pea/npc/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	var out bytes.Buffer
	err := check(context.Background(), config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "check.db"),
	}, logging.Discard(), &out)
	require.NoError(t, err)
	assert.Equal(t, "sqlite database ok, schema version 5\n", out.String())
}

func TestCheck_UnsupportedType(t *testing.T) {
	err := check(context.Background(), config.DatabaseConfig{Type: "mysql"}, logging.Discard(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "initialize database")
}
