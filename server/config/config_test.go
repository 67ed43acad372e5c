package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Load(nil)

	req.NoError(err)
	req.Equal(":8080", cfg.HTTP.Addr)
	req.Equal(":50051", cfg.Admin.GRPCAddr)
	req.Equal(256, cfg.WS.SendQueue)
	req.Equal(8, cfg.Persist.Workers)
	req.Equal(3*time.Second, cfg.Persist.Timeout)
	req.Equal("sqlite", cfg.Store.Driver)
	req.Empty(cfg.Redis.Addr)
	req.Equal("lounge", cfg.NATS.Prefix)
}

func TestLoad_File_Env_And_Flags(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "lounge.yaml")
	yaml := `
http:
  addr: ":9000"
persist:
  workers: 2
store:
  driver: none
redis:
  addr: "localhost:6379"
`
	req.NoError(os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("LOUNGE_CONFIG", path)
	t.Setenv("LOUNGE_PERSIST_WORKERS", "4")
	t.Setenv("LOUNGE_NATS_URL", "nats://localhost:4222")

	cfg, err := Load([]string{"--http-addr", ":9100"})

	req.NoError(err)
	// flags beat the file
	req.Equal(":9100", cfg.HTTP.Addr)
	// env beats the file
	req.Equal(4, cfg.Persist.Workers)
	req.Equal("none", cfg.Store.Driver)
	req.Equal("localhost:6379", cfg.Redis.Addr)
	req.Equal("nats://localhost:4222", cfg.NATS.URL)
}

func TestLoad_Rejects_Unknown_Driver(t *testing.T) {
	_, err := Load([]string{"--store", "postgres"})

	require.ErrorContains(t, err, "unknown store driver")
}
