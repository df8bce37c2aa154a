package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaultConfig(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate(), "default configuration should be valid")
}

func TestValidateDetectsInvalidConfigurations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing server id",
			mutate:  func(cfg *Config) { cfg.Server.ID = "" },
			wantErr: "server.id must be set",
		},
		{
			name:    "non positive chunk length",
			mutate:  func(cfg *Config) { cfg.Terrain.ChunkLength = 0 },
			wantErr: "terrain.chunkLength must be positive",
		},
		{
			name:    "pool too small",
			mutate:  func(cfg *Config) { cfg.Terrain.PoolSize = 1 },
			wantErr: "terrain.poolSize must be at least 2",
		},
		{
			name:    "unknown difficulty",
			mutate:  func(cfg *Config) { cfg.Terrain.Difficulty = "LUDICROUS" },
			wantErr: "terrain.difficulty",
		},
		{
			name:    "zero minimum width",
			mutate:  func(cfg *Config) { cfg.Path.WidthMin = 0 },
			wantErr: "path.widthMin must be positive",
		},
		{
			name: "inverted width bounds",
			mutate: func(cfg *Config) {
				cfg.Path.WidthMin = 40
				cfg.Path.WidthMax = 30
			},
			wantErr: "path.widthMax must be >= widthMin",
		},
		{
			name:    "heading at ninety degrees",
			mutate:  func(cfg *Config) { cfg.Path.MaxHeading = 90 },
			wantErr: "path.maxHeading",
		},
		{
			name:    "max gap below mean gap",
			mutate:  func(cfg *Config) { cfg.Jumps.MaxGap = cfg.Jumps.MeanGap - 1 },
			wantErr: "jumps.maxGap must be >= meanGap",
		},
		{
			name:    "rarity above one",
			mutate:  func(cfg *Config) { cfg.Obstacles.Bank.Rarity = 1.5 },
			wantErr: "obstacles.bank: rarity must be within [0, 1]",
		},
		{
			name: "tree proportion without sizes",
			mutate: func(cfg *Config) {
				cfg.Obstacles.Plateau.TreeSizes = TreeSizes{}
			},
			wantErr: "obstacles.plateau: treeProportion set but all tree sizes are zero",
		},
		{
			name:    "missing difficulty entry",
			mutate:  func(cfg *Config) { delete(cfg.Difficulties, DifficultyExpert) },
			wantErr: "difficulties.EXPERT missing",
		},
		{
			name: "too many vertices",
			mutate: func(cfg *Config) {
				cfg.Terrain.SubdivisionsX = 512
				cfg.Terrain.SubdivisionsZ = 512
			},
			wantErr: "exceed 65536 vertices",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysYAMLOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slope.yaml")
	doc := `
server:
  id: slope-test
  tick_rate: 20ms
terrain:
  seed: 99
  slope_angle: 30
  difficulty: EXPERT
  pool_size: 4
obstacles:
  track:
    rarity: 0.01
    tree_proportion: 1
    tree_sizes:
      small: 1
difficulties:
  EXPERT:
    density_multiplier: 2
    jump_height_scale: 1.5
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "slope-test", cfg.Server.ID)
	assert.Equal(t, 20*time.Millisecond, cfg.Server.TickRate.Duration())
	assert.Equal(t, int64(99), cfg.Terrain.Seed)
	assert.Equal(t, 4, cfg.Terrain.PoolSize)
	assert.Equal(t, DifficultyExpert, cfg.Terrain.Difficulty)
	assert.Equal(t, 0.01, cfg.Obstacles.Track.Rarity)
	assert.Equal(t, 2.0, cfg.ForDifficulty(DifficultyExpert).DensityMultiplier)
	// untouched keys keep defaults
	assert.Equal(t, Default().Terrain.ChunkLength, cfg.Terrain.ChunkLength)
	assert.Equal(t, Default().ForDifficulty(DifficultyEasy), cfg.ForDifficulty(DifficultyEasy))
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown section", doc: "terrian:\n  seed: 1\n"},
		{name: "unknown terrain key", doc: "terrain:\n  chunk_len: 10\n"},
		{name: "string where number expected", doc: "path:\n  width_min: wide\n"},
		{name: "rarity out of range", doc: "obstacles:\n  bank:\n    rarity: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0o600))
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validate config document")
		})
	}
}

func TestDurationAcceptsStringsAndNumbers(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"250ms"`), &d))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	assert.Equal(t, time.Microsecond, d.Duration())

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Zero(t, d)

	require.Error(t, json.Unmarshal([]byte(`"soon"`), &d))

	out, err := json.Marshal(Duration(3 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"3s"`, string(out))
}

func TestConfigJSONRoundTripKeepsDifficultyTable(t *testing.T) {
	cfg := Default()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NoError(t, decoded.Validate())
	assert.Equal(t, cfg.Difficulties, decoded.Difficulties)
	assert.Equal(t, cfg.Server.TickRate, decoded.Server.TickRate)
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty(" sport ")
	require.NoError(t, err)
	assert.Equal(t, DifficultySport, d)

	_, err = ParseDifficulty("nightmare")
	require.Error(t, err)
}
