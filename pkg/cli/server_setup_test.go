package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/getmockd/vhostd/pkg/config"
	"github.com/getmockd/vhostd/pkg/engine"
	"github.com/getmockd/vhostd/pkg/message"
	"github.com/getmockd/vhostd/pkg/provider"
	"github.com/getmockd/vhostd/pkg/provider/canned"
	"github.com/getmockd/vhostd/pkg/provider/fileserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(p provider.Provider, uri string) *message.Response {
	return p.Dispatch(message.NewRequest(&message.RequestInfo{Method: "GET", URI: uri}))
}

func TestBuildProvider(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".secret"), []byte("x"), 0o644))

	cfg := config.Default()
	cfg.SetBaseDir(dir)

	t.Run("routes only", func(t *testing.T) {
		p, err := buildProvider(cfg, &config.HostConfig{
			Routes: []canned.Route{{Pattern: "/ping", Cases: []canned.Case{{Body: "pong"}}}},
			Errors: map[int]canned.Page{404: {Body: "gone"}},
		})
		require.NoError(t, err)
		assert.IsType(t, &provider.Router{}, p)

		assert.Equal(t, []byte("pong"), get(p, "/ping").Body())
		miss := get(p, "/other")
		assert.Equal(t, 404, miss.StatusCode())
		assert.Equal(t, []byte("gone"), miss.Body())
	})

	t.Run("root with routes in front", func(t *testing.T) {
		p, err := buildProvider(cfg, &config.HostConfig{
			Root:   ".",
			Deny:   []string{"**/.*"},
			Routes: []canned.Route{{Pattern: "/index.html", Cases: []canned.Case{{Body: "routed"}}}},
		})
		require.NoError(t, err)
		fs, ok := p.(*fileserver.Provider)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(dir, "."), fs.Root())

		assert.Equal(t, []byte("<h1>home</h1>"), get(p, "/").Body())
		assert.Equal(t, []byte("routed"), get(p, "/index.html").Body())
		assert.Equal(t, 403, get(p, "/.secret").StatusCode())
	})

	t.Run("custom index", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "home.txt"), []byte("txt"), 0o644))
		p, err := buildProvider(cfg, &config.HostConfig{Root: dir, Index: []string{"home.txt"}})
		require.NoError(t, err)
		assert.Equal(t, []byte("txt"), get(p, "/").Body())
	})

	t.Run("bad route", func(t *testing.T) {
		_, err := buildProvider(cfg, &config.HostConfig{
			Routes: []canned.Route{{Pattern: "/x", Cases: []canned.Case{{When: "method ==", Body: "x"}}}},
		})
		assert.Error(t, err)
	})

	t.Run("bad deny glob", func(t *testing.T) {
		_, err := buildProvider(cfg, &config.HostConfig{Root: dir, Deny: []string{"[oops"}})
		assert.Error(t, err)
	})
}

func TestApplyProviders(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.VirtualHosts = true
	cfg.Default = &config.HostConfig{Routes: []canned.Route{{Pattern: "/.*", Cases: []canned.Case{{Body: "default"}}}}}
	cfg.Hosts = map[string]*config.HostConfig{
		"a.example.com": {Root: dir},
		"b.example.com": {Routes: []canned.Route{{Pattern: "/.*", Cases: []canned.Case{{Body: "b"}}}}},
	}

	eng := engine.New()
	require.NoError(t, applyProviders(eng, cfg))

	assert.True(t, eng.IsVirtualHostingEnabled())
	assert.NotNil(t, eng.Provider())
	assert.IsType(t, &fileserver.Provider{}, eng.ProviderForHost("a.example.com"))
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, eng.Registry().Hosts())

	t.Run("failure installs nothing", func(t *testing.T) {
		bad := config.Default()
		bad.Default = &config.HostConfig{Routes: []canned.Route{{Pattern: "/.*", Cases: []canned.Case{{Body: "x"}}}}}
		bad.Hosts = map[string]*config.HostConfig{
			"c.example.com": {Routes: []canned.Route{{Pattern: "(", Cases: []canned.Case{{Body: "x"}}}}},
		}

		fresh := engine.New()
		err := applyProviders(fresh, bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "c.example.com")
		assert.Nil(t, fresh.Provider())
	})
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "vhostd.log")

	log, closeLog, err := newLogger(config.LogConfig{Level: "debug", Format: "text", File: logFile}, &out)
	require.NoError(t, err)
	log.Debug("hello", "k", "v")
	closeLog()

	assert.Contains(t, out.String(), "hello")
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestEnsureCertificate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tls", "server.pem")
	var out bytes.Buffer
	log, closeLog, err := newLogger(config.LogConfig{}, &out)
	require.NoError(t, err)
	defer closeLog()

	require.NoError(t, ensureCertificate(path, log))
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(first), "BEGIN CERTIFICATE")
	assert.Contains(t, string(first), "PRIVATE KEY")

	require.NoError(t, ensureCertificate(path, log))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "existing bundle is kept")
}
