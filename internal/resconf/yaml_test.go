package resconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
nameservers:
  - 8.8.8.8
  - 1.1.1.1:53
search:
  - example.com
lookup:
  - file
  - bind
ndots: 2
timeout: 3s
attempts: 4
rotate: true
recurse: false
smart: true
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resolver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadPathParsesFullConfig(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	cfg, err := LoadPath(path)
	require.NoError(t, err)

	require.Len(t, cfg.Nameservers, 2)
	require.Equal(t, "8.8.8.8:53", cfg.Nameservers[0].String())
	require.Equal(t, "1.1.1.1:53", cfg.Nameservers[1].String())

	require.Equal(t, []string{"example.com"}, cfg.Search)
	require.Equal(t, []Lookup{LookupFile, LookupBind}, cfg.Lookup)

	require.Equal(t, 2, cfg.Options.NDots)
	require.Equal(t, 3*time.Second, cfg.Options.Timeout)
	require.Equal(t, 4, cfg.Options.Attempts)
	require.True(t, cfg.Options.Rotate)
	require.False(t, cfg.Options.Recurse)
	require.True(t, cfg.Options.Smart)
}

func TestLoadPathDefaultsMissingFields(t *testing.T) {
	path := writeTemp(t, "nameservers:\n  - 9.9.9.9\n")
	cfg, err := LoadPath(path)
	require.NoError(t, err)

	def := DefaultOptions()
	require.Equal(t, def.NDots, cfg.Options.NDots)
	require.Equal(t, def.Timeout, cfg.Options.Timeout)
	require.Equal(t, def.Attempts, cfg.Options.Attempts)
	require.False(t, cfg.Options.Recurse)
	require.Equal(t, []Lookup{LookupFile, LookupBind}, cfg.Lookup)
}

func TestLoadPathMissingFileErrors(t *testing.T) {
	_, err := LoadPath(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
