package logging

import (
	"os"
	"path/filepath"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToRotatingFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "nexdigi", charmlog.InfoLevel)
	require.NoError(t, err)
	defer l.Close()

	l.Info("backbone link established", "peer", "N0CALL-10")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "nexdigi-")

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "backbone link established")
}
