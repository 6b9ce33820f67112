package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPIDPath(t *testing.T) {
	path := DefaultPIDPath()
	assert.Equal(t, "vhostd.pid", filepath.Base(path))
	assert.Equal(t, ".vhostd", filepath.Base(filepath.Dir(path)))
}

func TestWriteAndReadPIDFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "nested", "test.pid")

	now := time.Now().Truncate(time.Second)
	info := &PIDFile{
		PID:          12345,
		StartTime:    now,
		Version:      "0.1.0",
		Commit:       "abc1234",
		Ports:        "8080,8443s",
		VirtualHosts: []string{"a.example.com"},
		ConfigFile:   "/etc/vhostd/vhostd.yaml",
	}

	require.NoError(t, WritePIDFile(pidPath, info))
	_, err := os.Stat(pidPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	got, err := ReadPIDFile(pidPath)
	require.NoError(t, err)
	assert.Equal(t, info.PID, got.PID)
	assert.True(t, info.StartTime.Equal(got.StartTime))
	assert.Equal(t, info.Ports, got.Ports)
	assert.Equal(t, info.VirtualHosts, got.VirtualHosts)
	assert.Equal(t, info.ConfigFile, got.ConfigFile)

	require.NoError(t, RemovePIDFile(pidPath))
	require.NoError(t, RemovePIDFile(pidPath), "removing twice is not an error")
}

func TestReadPIDFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadPIDFile(filepath.Join(dir, "absent.pid"))
	assert.ErrorIs(t, err, ErrNotRunning)

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o644))
	_, err = ReadPIDFile(bad)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotRunning)
}

func TestLiveProcess(t *testing.T) {
	dir := t.TempDir()

	t.Run("current process", func(t *testing.T) {
		path := filepath.Join(dir, "live.pid")
		require.NoError(t, WritePIDFile(path, &PIDFile{PID: os.Getpid()}))

		info, err := liveProcess(path)
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), info.PID)
	})

	t.Run("stale file is removed", func(t *testing.T) {
		path := filepath.Join(dir, "stale.pid")
		require.NoError(t, WritePIDFile(path, &PIDFile{PID: 0}))

		_, err := liveProcess(path)
		assert.ErrorIs(t, err, ErrNotRunning)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestPIDFile_FormatUptime(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5*time.Minute + 10*time.Second, "5m 10s"},
		{3*time.Hour + 15*time.Minute, "3h 15m"},
		{50*time.Hour + 5*time.Minute, "2d 2h 5m"},
	}

	for _, tt := range tests {
		p := &PIDFile{StartTime: time.Now().Add(-tt.ago)}
		assert.Equal(t, tt.want, p.FormatUptime())
	}

	assert.Equal(t, "0s", (&PIDFile{}).FormatUptime())
}

func TestPIDFile_URLs(t *testing.T) {
	p := &PIDFile{Ports: "8443s,8080"}
	assert.Equal(t, []string{"http://localhost:8080", "https://localhost:8443"}, p.URLs())

	p.Host = "0.0.0.0"
	assert.Equal(t, []string{"http://0.0.0.0:8080", "https://0.0.0.0:8443"}, p.URLs())

	assert.Nil(t, (&PIDFile{Ports: "bogus"}).URLs())
}
