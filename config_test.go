package fedmodel_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/fedmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		desc    string
		content string
		err     bool
		check   func(t *testing.T, cfg *fedmodel.Config)
	}{
		{
			desc: "full file",
			content: `
[coordinator]
min_participants = 5
auto_aggregate = false

[storage]
type = "sqlite"
sqlite_path = "/var/lib/fl/fl.db"

[artifacts]
dir = "/var/lib/fl/artifacts"
retain = 3
merge_mode = "delta"

[mqtt]
address = "tcp://broker:1883"
timeout = "10s"
domain_id = "d1"
channel_id = "c1"
`,
			check: func(t *testing.T, cfg *fedmodel.Config) {
				assert.Equal(t, 5, cfg.Coordinator.MinParticipants)
				assert.False(t, cfg.Coordinator.AutoAggregate)
				assert.Equal(t, "sqlite", cfg.Storage.Type)
				assert.Equal(t, "/var/lib/fl/fl.db", cfg.Storage.SQLitePath)
				assert.Equal(t, 3, cfg.Artifacts.Retain)
				assert.Equal(t, "delta", cfg.Artifacts.MergeMode)
				assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Address)
				assert.Equal(t, 10*time.Second, cfg.MQTT.Timeout)
				assert.True(t, cfg.Has("mqtt"))
			},
		},
		{
			desc: "partial section keeps defaults",
			content: `
[coordinator]
min_participants = 3
`,
			check: func(t *testing.T, cfg *fedmodel.Config) {
				assert.Equal(t, 3, cfg.Coordinator.MinParticipants)
				assert.True(t, cfg.Coordinator.AutoAggregate)
				assert.True(t, cfg.Has("coordinator"))
				assert.False(t, cfg.Has("storage"))
				assert.False(t, cfg.Has("mqtt"))
			},
		},
		{
			desc:    "malformed file",
			content: `[coordinator`,
			err:     true,
		},
	}

	for i, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			path := filepath.Join(dir, string(rune('a'+i))+".toml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o600))

			cfg, err := fedmodel.LoadConfig(path)
			if tc.err {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}

	_, err := fedmodel.LoadConfig(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
