package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a config-friendly wrapper around time.Duration that accepts human
// readable strings such as "33ms" in YAML and JSON documents while still
// allowing numeric nanosecond values.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null decode to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML encodes the duration as its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		var n int64
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("duration: decode int: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration: decode string: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures every tunable of the terrain engine and its host process.
type Config struct {
	Server       ServerConfig                    `yaml:"server" json:"server"`
	Terrain      TerrainConfig                   `yaml:"terrain" json:"terrain"`
	Path         PathConfig                      `yaml:"path" json:"path"`
	Jumps        JumpConfig                      `yaml:"jumps" json:"jumps"`
	Canyon       CanyonConfig                    `yaml:"canyon" json:"canyon"`
	Obstacles    ObstacleConfig                  `yaml:"obstacles" json:"obstacles"`
	Coins        CoinConfig                      `yaml:"coins" json:"coins"`
	Difficulties map[Difficulty]DifficultyConfig `yaml:"difficulties" json:"difficulties"`
	Debug        DebugConfig                     `yaml:"debug" json:"debug"`
	Autopilot    AutopilotConfig                 `yaml:"autopilot" json:"autopilot"`
}

type ServerConfig struct {
	ID       string   `yaml:"id" json:"id"`
	TickRate Duration `yaml:"tick_rate" json:"tickRate"` // e.g. "16ms"
}

// TerrainConfig holds the streaming window and global generation parameters.
type TerrainConfig struct {
	Seed                int64      `yaml:"seed" json:"seed"`
	SlopeAngle          float64    `yaml:"slope_angle" json:"slopeAngle"` // degrees
	Difficulty          Difficulty `yaml:"difficulty" json:"difficulty"`
	ChunkLength         float64    `yaml:"chunk_length" json:"chunkLength"`
	PoolSize            int        `yaml:"pool_size" json:"poolSize"`
	SubdivisionsX       int        `yaml:"subdivisions_x" json:"subdivisionsX"`
	SubdivisionsZ       int        `yaml:"subdivisions_z" json:"subdivisionsZ"`
	LateralMargin       float64    `yaml:"lateral_margin" json:"lateralMargin"` // plateau kept past the canyon wall
	SpawnZ              float64    `yaml:"spawn_z" json:"spawnZ"`
	SpawnStep           float64    `yaml:"spawn_step" json:"spawnStep"`
	NormalProbe         float64    `yaml:"normal_probe" json:"normalProbe"`
	Undulation          float64    `yaml:"undulation" json:"undulation"`
	UndulationFrequency float64    `yaml:"undulation_frequency" json:"undulationFrequency"`
}

// PathConfig shapes the centreline, width, banking and moguls.
type PathConfig struct {
	MeanderAmplitude          float64 `yaml:"meander_amplitude" json:"meanderAmplitude"`
	MeanderFrequency          float64 `yaml:"meander_frequency" json:"meanderFrequency"`
	MeanderSecondaryRatio     float64 `yaml:"meander_secondary_ratio" json:"meanderSecondaryRatio"`
	MeanderSecondaryFrequency float64 `yaml:"meander_secondary_frequency" json:"meanderSecondaryFrequency"`
	MeanderPhase              float64 `yaml:"meander_phase" json:"meanderPhase"`
	MeanderNoiseAmplitude     float64 `yaml:"meander_noise_amplitude" json:"meanderNoiseAmplitude"`
	MeanderNoiseFrequency     float64 `yaml:"meander_noise_frequency" json:"meanderNoiseFrequency"`
	SmoothingWindow           float64 `yaml:"smoothing_window" json:"smoothingWindow"`
	SmoothingSamples          int     `yaml:"smoothing_samples" json:"smoothingSamples"`
	MaxHeading                float64 `yaml:"max_heading" json:"maxHeading"` // degrees off the fall line

	BaseWidth      float64 `yaml:"base_width" json:"baseWidth"`
	WidthNoise     float64 `yaml:"width_noise" json:"widthNoise"`
	WidthFrequency float64 `yaml:"width_frequency" json:"widthFrequency"`
	WidthMin       float64 `yaml:"width_min" json:"widthMin"`
	WidthMax       float64 `yaml:"width_max" json:"widthMax"`
	TrackFraction  float64 `yaml:"track_fraction" json:"trackFraction"`

	BankingStrength float64 `yaml:"banking_strength" json:"bankingStrength"`
	BankGain        float64 `yaml:"bank_gain" json:"bankGain"`
	MaxBank         float64 `yaml:"max_bank" json:"maxBank"` // degrees
	CurvatureProbe  float64 `yaml:"curvature_probe" json:"curvatureProbe"`

	MogulHeight float64 `yaml:"mogul_height" json:"mogulHeight"`
	MogulScale  float64 `yaml:"mogul_scale" json:"mogulScale"`
}

type JumpConfig struct {
	MeanGap          float64 `yaml:"mean_gap" json:"meanGap"`
	GapStdDev        float64 `yaml:"gap_std_dev" json:"gapStdDev"`
	MaxGap           float64 `yaml:"max_gap" json:"maxGap"`
	StartDistance    float64 `yaml:"start_distance" json:"startDistance"`
	LengthMin        float64 `yaml:"length_min" json:"lengthMin"`
	LengthMax        float64 `yaml:"length_max" json:"lengthMax"`
	HeightMin        float64 `yaml:"height_min" json:"heightMin"`
	HeightMax        float64 `yaml:"height_max" json:"heightMax"`
	WidthFractionMin float64 `yaml:"width_fraction_min" json:"widthFractionMin"`
	WidthFractionMax float64 `yaml:"width_fraction_max" json:"widthFractionMax"`
}

type CanyonConfig struct {
	Height      float64 `yaml:"height" json:"height"`
	WallWidth   float64 `yaml:"wall_width" json:"wallWidth"`
	FloorOffset float64 `yaml:"floor_offset" json:"floorOffset"`
}

// ObstacleConfig holds the jittered grid and one rarity table per surface type.
type ObstacleConfig struct {
	CellSize float64      `yaml:"cell_size" json:"cellSize"`
	Jitter   float64      `yaml:"jitter" json:"jitter"` // fraction of a cell
	Track    SurfaceTable `yaml:"track" json:"track"`
	Bank     SurfaceTable `yaml:"bank" json:"bank"`
	Cliff    SurfaceTable `yaml:"cliff" json:"cliff"`
	Plateau  SurfaceTable `yaml:"plateau" json:"plateau"`
}

// SurfaceTable is the relative weighting for one surface type. Rarity is the
// presence probability per cell before the difficulty multiplier; the
// proportions and tree sizes are relative weights.
type SurfaceTable struct {
	Rarity             float64   `yaml:"rarity" json:"rarity"`
	TreeProportion     float64   `yaml:"tree_proportion" json:"treeProportion"`
	RockProportion     float64   `yaml:"rock_proportion" json:"rockProportion"`
	DeadTreeProportion float64   `yaml:"dead_tree_proportion" json:"deadTreeProportion"`
	TreeSizes          TreeSizes `yaml:"tree_sizes" json:"treeSizes"`
}

type TreeSizes struct {
	Small  float64 `yaml:"small" json:"small"`
	Medium float64 `yaml:"medium" json:"medium"`
	Large  float64 `yaml:"large" json:"large"`
}

type CoinConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	ArcChance    float64 `yaml:"arc_chance" json:"arcChance"`
	CoinsPerArc  int     `yaml:"coins_per_arc" json:"coinsPerArc"`
	Spacing      float64 `yaml:"spacing" json:"spacing"`
	ArcAmplitude float64 `yaml:"arc_amplitude" json:"arcAmplitude"`
	Hover        float64 `yaml:"hover" json:"hover"`
}

type DifficultyConfig struct {
	DensityMultiplier float64 `yaml:"density_multiplier" json:"densityMultiplier"`
	JumpHeightScale   float64 `yaml:"jump_height_scale" json:"jumpHeightScale"`
}

type DebugConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	ListenAddress string   `yaml:"listen_address" json:"listenAddress"`
	StreamBuffer  int      `yaml:"stream_buffer" json:"streamBuffer"`
	WriteTimeout  Duration `yaml:"write_timeout" json:"writeTimeout"`
}

type AutopilotConfig struct {
	Speed       float64 `yaml:"speed" json:"speed"`               // metres per second along -Z
	MaxDistance float64 `yaml:"max_distance" json:"maxDistance"` // 0 runs until cancelled
	LogEvery    int     `yaml:"log_every" json:"logEvery"`       // recycles between progress lines
}

// Load reads configuration from a YAML file if provided. An empty path returns defaults.
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := ValidateDocument(data); err != nil {
		return nil, fmt.Errorf("validate config document: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ID:       "slope-0",
			TickRate: Duration(16 * time.Millisecond),
		},
		Terrain: TerrainConfig{
			Seed:                1337,
			SlopeAngle:          22,
			Difficulty:          DifficultySport,
			ChunkLength:         120,
			PoolSize:            3,
			SubdivisionsX:       64,
			SubdivisionsZ:       80,
			LateralMargin:       8,
			SpawnZ:              0,
			SpawnStep:           1,
			NormalProbe:         0.5,
			Undulation:          3,
			UndulationFrequency: 0.004,
		},
		Path: PathConfig{
			MeanderAmplitude:          22,
			MeanderFrequency:          0.006,
			MeanderSecondaryRatio:     0.45,
			MeanderSecondaryFrequency: 0.017,
			MeanderPhase:              1.3,
			MeanderNoiseAmplitude:     8,
			MeanderNoiseFrequency:     0.01,
			SmoothingWindow:           24,
			SmoothingSamples:          9,
			MaxHeading:                35,
			BaseWidth:                 34,
			WidthNoise:                10,
			WidthFrequency:            0.008,
			WidthMin:                  24,
			WidthMax:                  48,
			TrackFraction:             0.55,
			BankingStrength:           1,
			BankGain:                  2500,
			MaxBank:                   14,
			CurvatureProbe:            6,
			MogulHeight:               0.35,
			MogulScale:                0.12,
		},
		Jumps: JumpConfig{
			MeanGap:          260,
			GapStdDev:        45,
			MaxGap:           380,
			StartDistance:    150,
			LengthMin:        10,
			LengthMax:        16,
			HeightMin:        1.2,
			HeightMax:        2.6,
			WidthFractionMin: 0.35,
			WidthFractionMax: 0.6,
		},
		Canyon: CanyonConfig{
			Height:      18,
			WallWidth:   14,
			FloorOffset: 4,
		},
		Obstacles: ObstacleConfig{
			CellSize: 6,
			Jitter:   0.8,
			Track: SurfaceTable{
				Rarity:             0.03,
				TreeProportion:     0.3,
				RockProportion:     0.6,
				DeadTreeProportion: 0.1,
				TreeSizes:          TreeSizes{Small: 3, Medium: 1, Large: 0},
			},
			Bank: SurfaceTable{
				Rarity:             0.12,
				TreeProportion:     0.6,
				RockProportion:     0.3,
				DeadTreeProportion: 0.1,
				TreeSizes:          TreeSizes{Small: 2, Medium: 2, Large: 1},
			},
			Cliff: SurfaceTable{
				Rarity:             0.2,
				TreeProportion:     0.4,
				RockProportion:     0.5,
				DeadTreeProportion: 0.1,
				TreeSizes:          TreeSizes{Small: 1, Medium: 2, Large: 1},
			},
			Plateau: SurfaceTable{
				Rarity:             0.35,
				TreeProportion:     0.8,
				RockProportion:     0.1,
				DeadTreeProportion: 0.1,
				TreeSizes:          TreeSizes{Small: 1, Medium: 2, Large: 3},
			},
		},
		Coins: CoinConfig{
			Enabled:      true,
			ArcChance:    0.08,
			CoinsPerArc:  6,
			Spacing:      3,
			ArcAmplitude: 4,
			Hover:        1,
		},
		Difficulties: DefaultDifficulties(),
		Debug: DebugConfig{
			Enabled:       false,
			ListenAddress: "127.0.0.1:28090",
			StreamBuffer:  32,
			WriteTimeout:  Duration(2 * time.Second),
		},
		Autopilot: AutopilotConfig{
			Speed:       18,
			MaxDistance: 0,
			LogEvery:    10,
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.ID == "" {
		return errors.New("server.id must be set")
	}
	if c.Server.TickRate <= 0 {
		return errors.New("server.tickRate must be positive")
	}
	t := c.Terrain
	if t.SlopeAngle < 0 || t.SlopeAngle >= 80 {
		return errors.New("terrain.slopeAngle must be within [0, 80)")
	}
	if _, err := ParseDifficulty(string(t.Difficulty)); err != nil {
		return fmt.Errorf("terrain.difficulty: %w", err)
	}
	if t.ChunkLength <= 0 {
		return errors.New("terrain.chunkLength must be positive")
	}
	if t.PoolSize < 2 {
		return errors.New("terrain.poolSize must be at least 2")
	}
	if t.SubdivisionsX <= 0 || t.SubdivisionsZ <= 0 {
		return errors.New("terrain subdivisions must be positive")
	}
	if (t.SubdivisionsX+1)*(t.SubdivisionsZ+1) > 1<<16 {
		return errors.New("terrain subdivisions exceed 65536 vertices per chunk")
	}
	if t.SpawnStep <= 0 {
		return errors.New("terrain.spawnStep must be positive")
	}
	if t.NormalProbe <= 0 {
		return errors.New("terrain.normalProbe must be positive")
	}
	p := c.Path
	if p.WidthMin <= 0 {
		return errors.New("path.widthMin must be positive")
	}
	if p.WidthMax < p.WidthMin {
		return errors.New("path.widthMax must be >= widthMin")
	}
	if p.MaxHeading <= 0 || p.MaxHeading >= 90 {
		return errors.New("path.maxHeading must be within (0, 90)")
	}
	if p.SmoothingSamples < 1 {
		return errors.New("path.smoothingSamples must be at least 1")
	}
	if p.TrackFraction <= 0 || p.TrackFraction > 1 {
		return errors.New("path.trackFraction must be within (0, 1]")
	}
	if p.MaxBank < 0 || p.MaxBank >= 60 {
		return errors.New("path.maxBank must be within [0, 60)")
	}
	if p.CurvatureProbe <= 0 {
		return errors.New("path.curvatureProbe must be positive")
	}
	j := c.Jumps
	if j.MeanGap > 0 {
		if j.LengthMin <= 0 || j.LengthMax < j.LengthMin {
			return errors.New("jumps length range invalid")
		}
		if j.HeightMin < 0 || j.HeightMax < j.HeightMin {
			return errors.New("jumps height range invalid")
		}
		if j.WidthFractionMin <= 0 || j.WidthFractionMax > 1 || j.WidthFractionMax < j.WidthFractionMin {
			return errors.New("jumps width fraction range invalid")
		}
		if j.MeanGap <= j.LengthMax {
			return errors.New("jumps.meanGap must exceed lengthMax")
		}
		if j.MaxGap < j.MeanGap {
			return errors.New("jumps.maxGap must be >= meanGap")
		}
	}
	if c.Canyon.WallWidth <= 0 || c.Canyon.FloorOffset < 0 || c.Canyon.Height < 0 {
		return errors.New("canyon dimensions invalid")
	}
	o := c.Obstacles
	if o.CellSize <= 0 {
		return errors.New("obstacles.cellSize must be positive")
	}
	if o.Jitter < 0 || o.Jitter > 1 {
		return errors.New("obstacles.jitter must be within [0, 1]")
	}
	for name, table := range map[string]SurfaceTable{"track": o.Track, "bank": o.Bank, "cliff": o.Cliff, "plateau": o.Plateau} {
		if err := table.validate(); err != nil {
			return fmt.Errorf("obstacles.%s: %w", name, err)
		}
	}
	if c.Coins.Enabled {
		if c.Coins.CoinsPerArc <= 0 || c.Coins.Spacing <= 0 {
			return errors.New("coins.coinsPerArc and coins.spacing must be positive")
		}
		if c.Coins.ArcChance < 0 || c.Coins.ArcChance > 1 {
			return errors.New("coins.arcChance must be within [0, 1]")
		}
	}
	for _, d := range AllDifficulties() {
		if _, ok := c.Difficulties[d]; !ok {
			return fmt.Errorf("difficulties.%s missing", d)
		}
	}
	for d, dc := range c.Difficulties {
		if dc.DensityMultiplier < 0 || dc.JumpHeightScale < 0 {
			return fmt.Errorf("difficulties.%s multipliers cannot be negative", d)
		}
	}
	if c.Debug.Enabled && c.Debug.ListenAddress == "" {
		return errors.New("debug.listenAddress must be set when debug is enabled")
	}
	if c.Autopilot.Speed < 0 {
		return errors.New("autopilot.speed cannot be negative")
	}
	return nil
}

func (t SurfaceTable) validate() error {
	if t.Rarity < 0 || t.Rarity > 1 {
		return errors.New("rarity must be within [0, 1]")
	}
	if t.TreeProportion < 0 || t.RockProportion < 0 || t.DeadTreeProportion < 0 {
		return errors.New("proportions cannot be negative")
	}
	if t.TreeSizes.Small < 0 || t.TreeSizes.Medium < 0 || t.TreeSizes.Large < 0 {
		return errors.New("tree sizes cannot be negative")
	}
	if t.Rarity > 0 && t.TreeProportion+t.RockProportion+t.DeadTreeProportion == 0 {
		return errors.New("rarity set but all proportions are zero")
	}
	if t.TreeProportion > 0 && t.TreeSizes.Small+t.TreeSizes.Medium+t.TreeSizes.Large == 0 {
		return errors.New("treeProportion set but all tree sizes are zero")
	}
	return nil
}
