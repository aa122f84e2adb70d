package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := require.New(t)

	path := filepath.Join(t.TempDir(), "blockseal.log")
	logger, err := New(Config{Level: "info", Outputs: []string{path}})
	r.NoError(err)

	logger.Debugw("hidden", "k", 1)
	logger.Infow("shown", "k", 2)
	_ = logger.Sync()

	content, err := os.ReadFile(path)
	r.NoError(err)
	r.Contains(string(content), `"msg":"shown"`)
	r.NotContains(string(content), "hidden")
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
}
