package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/vca/internal/traffic"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.4, cfg.Vision.DetectionThreshold)
	assert.Equal(t, 3, cfg.Tracking.MinHits)
	assert.Equal(t, ReferenceZones, cfg.Zones)
	assert.Equal(t, traffic.DefaultVehicleLabels, cfg.Classes.Vehicles)
	assert.Equal(t, "VL", cfg.Classes.Codes["car"])
	assert.Equal(t, time.Second, cfg.Emotion.SampleInterval)
	assert.Equal(t, "q", cfg.Display.QuitKey)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.MinIO.Enabled())
}

func TestLoadZonesKeepOrder(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
zones:
  - {name: north, x1: 0, y1: 0, x2: 100, y2: 100}
  - {name: east, x1: 50, y1: 50, x2: 200, y2: 200}
`))
	require.NoError(t, err)

	zs, err := cfg.ZoneSet()
	require.NoError(t, err)
	require.Equal(t, 2, zs.Len())
	assert.Equal(t, "north", zs.Zones()[0].Name)
	assert.Equal(t, "east", zs.Zones()[1].Name)
}

func TestLoadEmptyZoneListDisablesZones(t *testing.T) {
	cfg, err := Load(writeConfig(t, "zones: []\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Zones)
}

func TestLoadRejectsInvalidZone(t *testing.T) {
	_, err := Load(writeConfig(t, `
zones:
  - {name: bad, x1: 10, y1: 0, x2: 0, y2: 10}
`))
	assert.ErrorIs(t, err, traffic.ErrInvalidZone)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VCA_DB_HOST", "db.internal")
	t.Setenv("VCA_SERVER_PORT", "9090")
	t.Setenv("VCA_DISPLAY", "yes")

	cfg, err := Load(writeConfig(t, "server:\n  port: 8000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Database.Enabled())
	assert.True(t, cfg.Display.Enabled)
	assert.Equal(t, "postgres://:@db.internal:5432/?sslmode=disable", cfg.Database.DSN())
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "detection_results.xlsx", cfg.Export.Workbook)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
