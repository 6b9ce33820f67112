package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile_YAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "public"), 0o755))

	path := writeFile(t, dir, "vhostd.yaml", `
ports: "8080, 8443s"
tls:
  certFile: server.pem
virtualHosts: true
maxConnections: 64
log:
  level: debug
  format: json
default:
  root: public
  index: [home.html]
  deny: ["**/.git/**"]
hosts:
  api.example.com:
    routes:
      - pattern: /health
        cases:
          - status: 200
            body: ok
    errors:
      404:
        contentType: application/json
        body: '{"error":"not found"}'
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "8080, 8443s", cfg.Ports)
	assert.Equal(t, "server.pem", cfg.TLS.CertFile)
	assert.True(t, cfg.VirtualHosts)
	assert.Equal(t, 64, cfg.MaxConnections)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	require.NotNil(t, cfg.Default)
	assert.Equal(t, "public", cfg.Default.Root)
	assert.Equal(t, []string{"home.html"}, cfg.Default.Index)
	assert.Equal(t, filepath.Join(dir, "public"), cfg.Resolve(cfg.Default.Root))

	api := cfg.Hosts["api.example.com"]
	require.NotNil(t, api)
	require.Len(t, api.Routes, 1)
	assert.Equal(t, "/health", api.Routes[0].Pattern)
	assert.Equal(t, "ok", api.Routes[0].Cases[0].Body)
	assert.Equal(t, "application/json", api.Errors[404].ContentType)
}

func TestLoadFromFile_JSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path := writeFile(t, dir, "vhostd.json", `{
		"ports": "9090",
		"hosts": {"a.example.com": {"routes": [{"pattern": "/.*", "cases": [{"body": "a"}]}]}},
		"virtualHosts": true
	}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Ports)
	assert.Equal(t, "info", cfg.Log.Level, "defaults survive partial files")
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing", filepath.Join(dir, "absent.yaml"), ErrFileNotFound},
		{"empty", writeFile(t, dir, "empty.yaml", "  \n"), ErrEmptyFile},
		{"bad json", writeFile(t, dir, "bad.json", "{ nope }"), ErrInvalidJSON},
		{"bad yaml", writeFile(t, dir, "bad.yml", "ports: [unclosed"), ErrInvalidYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromFile(tt.path)
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("directory", func(t *testing.T) {
		_, err := LoadFromFile(dir)
		assert.Error(t, err)
	})
}

func TestApplyEnvFrom(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvPorts:          "80,443s",
		EnvTLSCert:        "/etc/vhostd/server.pem",
		EnvVirtualHosts:   "true",
		EnvLogLevel:       "warn",
		EnvLogFormat:      "json",
		EnvMaxConnections: "128",
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnvFrom(func(k string) string { return env[k] }))
	assert.Equal(t, "80,443s", cfg.Ports)
	assert.Equal(t, "/etc/vhostd/server.pem", cfg.TLS.CertFile)
	assert.True(t, cfg.VirtualHosts)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 128, cfg.MaxConnections)

	t.Run("unset keeps values", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.ApplyEnvFrom(func(string) string { return "" }))
		assert.Equal(t, Default(), cfg)
	})

	t.Run("unparsable value", func(t *testing.T) {
		bad := map[string]string{EnvPorts: "9090", EnvVirtualHosts: "maybe"}
		cfg := Default()
		err := cfg.ApplyEnvFrom(func(k string) string { return bad[k] })
		assert.ErrorIs(t, err, ErrInvalidEnv)
		assert.Equal(t, DefaultPorts, cfg.Ports, "nothing applied")
	})

	t.Run("negative limits", func(t *testing.T) {
		bad := map[string]string{EnvMaxConnections: "-1", EnvRateLimit: "-0.5"}
		cfg := Default()
		err := cfg.ApplyEnvFrom(func(k string) string { return bad[k] })
		assert.ErrorIs(t, err, ErrInvalidEnv)
		assert.Contains(t, err.Error(), EnvMaxConnections)
		assert.Contains(t, err.Error(), EnvRateLimit)
		assert.Equal(t, 0, cfg.MaxConnections)
	})

	t.Run("limits", func(t *testing.T) {
		limits := map[string]string{EnvMaxBodyBytes: "1048576", EnvRateLimit: "2.5"}
		cfg := Default()
		require.NoError(t, cfg.ApplyEnvFrom(func(k string) string { return limits[k] }))
		assert.Equal(t, int64(1048576), cfg.MaxBodyBytes)
		assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cert := writeFile(t, dir, "server.pem", "pem")

	fieldsOf := func(err error) []string {
		var fields []string
		for _, e := range unwrapAll(err) {
			var ve *ValidationError
			if errors.As(e, &ve) {
				fields = append(fields, ve.Field)
			}
		}
		return fields
	}

	tests := []struct {
		name   string
		modify func(*ServerConfig)
		fields []string
	}{
		{"default is valid", func(*ServerConfig) {}, nil},
		{"bad ports", func(c *ServerConfig) { c.Ports = "80,http" }, []string{"ports"}},
		{"tls without cert", func(c *ServerConfig) { c.Ports = "8443s" }, []string{"tls.certFile"}},
		{"tls with cert", func(c *ServerConfig) { c.Ports = "8443s"; c.TLS.CertFile = cert }, nil},
		{"missing cert", func(c *ServerConfig) {
			c.Ports = "8443s"
			c.TLS.CertFile = filepath.Join(dir, "absent.pem")
		}, []string{"tls.certFile"}},
		{"auto generated cert", func(c *ServerConfig) {
			c.Ports = "8443s"
			c.TLS.CertFile = filepath.Join(dir, "absent.pem")
			c.TLS.AutoGenerate = true
		}, nil},
		{"negative limits", func(c *ServerConfig) { c.MaxConnections = -1; c.MaxBodyBytes = -1 }, []string{"maxConnections", "maxBodyBytes"}},
		{"negative rate limit", func(c *ServerConfig) { c.RateLimit = RateLimitConfig{RequestsPerSecond: -1, Burst: -2} }, []string{"rateLimit.requestsPerSecond", "rateLimit.burst"}},
		{"bad log", func(c *ServerConfig) { c.Log.Level = "loud"; c.Log.Format = "xml" }, []string{"log.level", "log.format"}},
		{"empty host", func(c *ServerConfig) { c.Default = &HostConfig{} }, []string{"default"}},
		{"missing root", func(c *ServerConfig) {
			c.Default = &HostConfig{Root: filepath.Join(dir, "nope")}
		}, []string{"default.root"}},
		{"root is file", func(c *ServerConfig) { c.Default = &HostConfig{Root: cert} }, []string{"default.root"}},
		{"bad deny glob", func(c *ServerConfig) {
			c.Default = &HostConfig{Root: dir, Deny: []string{"[unclosed"}}
		}, []string{"default.deny[0]"}},
		{"bad index", func(c *ServerConfig) {
			c.Default = &HostConfig{Root: dir, Index: []string{"a/b.html"}}
		}, []string{"default.index[0]"}},
		{"hosts without virtual hosting", func(c *ServerConfig) {
			c.Hosts = map[string]*HostConfig{"a.example.com": {Root: dir}}
		}, []string{"hosts"}},
		{"nil host", func(c *ServerConfig) {
			c.VirtualHosts = true
			c.Hosts = map[string]*HostConfig{"a.example.com": nil}
		}, []string{"hosts.a.example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ElementsMatch(t, tt.fields, fieldsOf(err))
		})
	}
}

func unwrapAll(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func TestToYAML(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Default = &HostConfig{Root: "public"}
	data, err := ToYAML(cfg)
	require.NoError(t, err)

	back, err := ParseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.Ports, back.Ports)
	assert.Equal(t, "public", back.Default.Root)

	_, err = ToYAML(nil)
	assert.Error(t, err)
}
