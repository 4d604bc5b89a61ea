// Package config loads the engine configuration from YAML.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var schemaJSON []byte

type Config struct {
	Log          LogConfig          `yaml:"log" json:"log"`
	Collectibles CollectiblesConfig `yaml:"collectibles" json:"collectibles"`
	Tracking     TrackingConfig     `yaml:"tracking" json:"tracking"`
	Discovery    DiscoveryConfig    `yaml:"discovery" json:"discovery"`
	Scheduler    SchedulerConfig    `yaml:"scheduler" json:"scheduler"`
	Minimap      MinimapConfig      `yaml:"minimap" json:"minimap"`
	Cosmetics    CosmeticsConfig    `yaml:"cosmetics" json:"cosmetics"`
	Server       ServerConfig       `yaml:"server" json:"server"`
	Ledger       LedgerConfig       `yaml:"ledger" json:"ledger"`
	Recorder     RecorderConfig     `yaml:"recorder" json:"recorder"`
	Host         HostConfig         `yaml:"host" json:"host"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

type CollectiblesConfig struct {
	Count          int           `yaml:"count" json:"count"`
	NearCount      int           `yaml:"near_count" json:"near_count"`
	NearMinRadius  float64       `yaml:"near_min_radius" json:"near_min_radius"`
	NearSpread     float64       `yaml:"near_spread" json:"near_spread"`
	NearJitter     float64       `yaml:"near_jitter" json:"near_jitter"`
	SpawnRadius    float64       `yaml:"spawn_radius" json:"spawn_radius"`
	MinDistance    float64       `yaml:"min_distance" json:"min_distance"`
	Attempts       int           `yaml:"placement_attempts" json:"placement_attempts"`
	PickupRadius   float64       `yaml:"pickup_radius" json:"pickup_radius"`
	PickupInterval time.Duration `yaml:"pickup_interval" json:"pickup_interval"`
	GroundOffset   float64       `yaml:"ground_offset" json:"ground_offset"`
	RenderScale    float64       `yaml:"render_scale" json:"render_scale"`
	Seed           uint64        `yaml:"seed" json:"seed"`
}

type TrackingConfig struct {
	PublishInterval time.Duration `yaml:"publish_interval" json:"publish_interval"`
	StaleAfter      int           `yaml:"stale_after" json:"stale_after"`
	ErrorLogCap     uint64        `yaml:"error_log_cap" json:"error_log_cap"` // 0 silences read errors
}

type DiscoveryConfig struct {
	Threshold          float64  `yaml:"threshold" json:"threshold"`
	MaxDepth           int      `yaml:"max_depth" json:"max_depth"`
	MaxNodes           int      `yaml:"max_nodes" json:"max_nodes"`
	AccessorKeys       []string `yaml:"accessor_keys" json:"accessor_keys"`
	SceneKeys          []string `yaml:"scene_keys" json:"scene_keys"`
	AccessorConfidence float64  `yaml:"accessor_confidence" json:"accessor_confidence"`
}

type ProbeConfig struct {
	Interval    time.Duration `yaml:"interval" json:"interval"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
}

type SchedulerConfig struct {
	Fast             ProbeConfig `yaml:"fast" json:"fast"`
	Slow             ProbeConfig `yaml:"slow" json:"slow"`
	Attach           ProbeConfig `yaml:"attach" json:"attach"`
	EventMaxAttempts int         `yaml:"event_max_attempts" json:"event_max_attempts"`
}

type MinimapConfig struct {
	MapSize float64 `yaml:"map_size" json:"map_size"`
	Width   int     `yaml:"width" json:"width"`
	Height  int     `yaml:"height" json:"height"`
}

type CosmeticsConfig struct {
	Enabled   bool        `yaml:"enabled" json:"enabled"`
	Color     string      `yaml:"color" json:"color"`
	Emissive  string      `yaml:"emissive" json:"emissive"`
	Intensity float64     `yaml:"intensity" json:"intensity"`
	Skip      []string    `yaml:"skip" json:"skip"`
	Probe     ProbeConfig `yaml:"probe" json:"probe"`
}

type ServerConfig struct {
	Addr             string        `yaml:"addr" json:"addr"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval" json:"snapshot_interval"`
	// Token, when set, is required on every request.
	Token string `yaml:"token" json:"token,omitempty"`
}

type LedgerConfig struct {
	Path string `yaml:"path" json:"path"`
}

type RecorderConfig struct {
	Dir    string `yaml:"dir" json:"dir"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// HostConfig tunes the simulated host used by the run command.
type HostConfig struct {
	Frame        time.Duration `yaml:"frame" json:"frame"`
	PlayerSpeed  float64       `yaml:"player_speed" json:"player_speed"`
	PathRadius   float64       `yaml:"path_radius" json:"path_radius"`
	RebuildEvery time.Duration `yaml:"rebuild_every" json:"rebuild_every"`
	Rocks        int           `yaml:"rocks" json:"rocks"`
	Trees        int           `yaml:"trees" json:"trees"`
	Seed         uint64        `yaml:"seed" json:"seed"`
}

// Default returns the tuned configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Collectibles: CollectiblesConfig{
			Count:          30,
			NearCount:      5,
			NearMinRadius:  3,
			NearSpread:     5,
			NearJitter:     0.5,
			SpawnRadius:    30,
			MinDistance:    5,
			Attempts:       50,
			PickupRadius:   8,
			PickupInterval: 50 * time.Millisecond,
			GroundOffset:   3,
			RenderScale:    2,
		},
		Tracking: TrackingConfig{
			PublishInterval: 16 * time.Millisecond,
			StaleAfter:      60,
			ErrorLogCap:     5,
		},
		Discovery: DiscoveryConfig{
			Threshold:          30,
			MaxDepth:           32,
			MaxNodes:           50000,
			AccessorKeys:       []string{"playerMesh", "player", "explorer"},
			SceneKeys:          []string{"scene", "getScene"},
			AccessorConfidence: 1000,
		},
		Scheduler: SchedulerConfig{
			Fast:             ProbeConfig{Interval: 100 * time.Millisecond, MaxAttempts: 100},
			Slow:             ProbeConfig{Interval: 2 * time.Second, MaxAttempts: 30},
			Attach:           ProbeConfig{Interval: 300 * time.Millisecond, MaxAttempts: 50},
			EventMaxAttempts: 60,
		},
		Minimap: MinimapConfig{MapSize: 60, Width: 200, Height: 200},
		Cosmetics: CosmeticsConfig{
			Enabled:   true,
			Color:     "#00ff00",
			Emissive:  "#003300",
			Intensity: 0.4,
			Skip:      []string{"jacket", "coat"},
			Probe:     ProbeConfig{Interval: 500 * time.Millisecond, MaxAttempts: 200},
		},
		Server:   ServerConfig{Addr: ":8089", SnapshotInterval: 100 * time.Millisecond},
		Recorder: RecorderConfig{Prefix: "events"},
		Host: HostConfig{
			Frame:        16 * time.Millisecond,
			PlayerSpeed:  4,
			PathRadius:   12,
			RebuildEvery: 20 * time.Second,
			Rocks:        12,
			Trees:        8,
			Seed:         1,
		},
	}
}

// Load reads path over Default.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode validates r against the embedded schema and decodes it over
// Default. An empty document yields Default.
func Decode(r io.Reader) (Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}
	cfg := Default()
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, nil
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if doc != nil {
		if err := validateSchema(doc); err != nil {
			return Config{}, err
		}
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateSchema(doc any) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	// The validator expects JSON-decoded values.
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	var v any
	if err := json.Unmarshal(buf, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if err := schema.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("%w: %s", ErrSchema, ve.Error())
		}
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("config: schema: %w", err)
	}
	s, err := c.Compile("config.schema.json")
	if err != nil {
		return nil, fmt.Errorf("config: schema: %w", err)
	}
	return s, nil
}

// Validate checks constraints the schema cannot express.
func (c Config) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = errors.Join(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	col := c.Collectibles
	if col.Count < 0 {
		add("collectibles.count must not be negative")
	}
	if col.NearCount > col.Count {
		add("collectibles.near_count %d exceeds count %d", col.NearCount, col.Count)
	}
	if col.PickupRadius <= 0 || col.SpawnRadius <= 0 {
		add("collectibles radii must be positive")
	}
	if col.PickupInterval <= 0 {
		add("collectibles.pickup_interval must be positive")
	}
	if col.Attempts < 1 {
		add("collectibles.placement_attempts must be at least 1")
	}
	if c.Tracking.PublishInterval < 0 {
		add("tracking.publish_interval must not be negative")
	}
	if c.Tracking.StaleAfter < 1 {
		add("tracking.stale_after must be at least 1")
	}
	if d := c.Discovery.MaxDepth; d < 1 || d > 64 {
		add("discovery.max_depth %d outside 1..64", d)
	}
	if c.Discovery.MaxNodes < 1 {
		add("discovery.max_nodes must be at least 1")
	}
	for name, p := range map[string]ProbeConfig{
		"scheduler.fast":   c.Scheduler.Fast,
		"scheduler.slow":   c.Scheduler.Slow,
		"scheduler.attach": c.Scheduler.Attach,
		"cosmetics.probe":  c.Cosmetics.Probe,
	} {
		if p.Interval <= 0 || p.MaxAttempts < 1 {
			add("%s needs a positive interval and attempt ceiling", name)
		}
	}
	if c.Scheduler.EventMaxAttempts < 1 {
		add("scheduler.event_max_attempts must be at least 1")
	}
	if c.Minimap.MapSize <= 0 || c.Minimap.Width <= 0 || c.Minimap.Height <= 0 {
		add("minimap dimensions must be positive")
	}
	if c.Server.SnapshotInterval <= 0 {
		add("server.snapshot_interval must be positive")
	}
	if c.Host.Frame <= 0 {
		add("host.frame must be positive")
	}
	return errs
}
