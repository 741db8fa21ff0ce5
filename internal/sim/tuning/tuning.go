package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.schema.json
var schemaJSON string

type Tuning struct {
	World    World    `yaml:"world" json:"world"`
	Stream   Stream   `yaml:"stream" json:"stream"`
	Sim      Sim      `yaml:"sim" json:"sim"`
	Gen      Gen      `yaml:"gen" json:"gen"`
	Observer Observer `yaml:"observer" json:"observer"`
}

type World struct {
	MaxDepth          int    `yaml:"max_depth" json:"max_depth"`
	BufferBudgetBytes int64  `yaml:"buffer_budget_bytes" json:"buffer_budget_bytes"`
	Seed              int64  `yaml:"seed" json:"seed"`
	Min               [3]int `yaml:"min" json:"min"`
}

type Stream struct {
	EdgeMargin int `yaml:"edge_margin" json:"edge_margin"`
}

type Sim struct {
	TickRateHz int `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	InboxSize  int `yaml:"inbox_size" json:"inbox_size"`
}

type Gen struct {
	WaterLevel          int     `yaml:"water_level" json:"water_level"`
	BaseHeight          int     `yaml:"base_height" json:"base_height"`
	HeightScale         float64 `yaml:"height_scale" json:"height_scale"`
	TreePermille        int     `yaml:"tree_permille" json:"tree_permille"`
	CactusPermille      int     `yaml:"cactus_permille" json:"cactus_permille"`
	SprucePermille      int     `yaml:"spruce_permille" json:"spruce_permille"`
	GoldClusterPermille int     `yaml:"gold_cluster_permille" json:"gold_cluster_permille"`
	SpawnClearRadius    int     `yaml:"spawn_clear_radius" json:"spawn_clear_radius"`
}

type Observer struct {
	MaxSessions int  `yaml:"max_sessions" json:"max_sessions"`
	FrameQueue  int  `yaml:"frame_queue" json:"frame_queue"`
	AllowRemote bool `yaml:"allow_remote" json:"allow_remote"`
	ZstdLevel   int  `yaml:"zstd_level" json:"zstd_level"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.World.MaxDepth == 0 {
		t.World.MaxDepth = 9
	}
	if t.World.BufferBudgetBytes == 0 {
		t.World.BufferBudgetBytes = 256 << 20
	}
	if t.Stream.EdgeMargin == 0 {
		t.Stream.EdgeMargin = 30
	}
	if t.Sim.TickRateHz == 0 {
		t.Sim.TickRateHz = 30
	}
	if t.Sim.InboxSize == 0 {
		t.Sim.InboxSize = 1024
	}
	if t.Gen.WaterLevel == 0 {
		t.Gen.WaterLevel = 26
	}
	if t.Gen.HeightScale == 0 {
		t.Gen.HeightScale = 1
	}
	if t.Observer.MaxSessions == 0 {
		t.Observer.MaxSessions = 16
	}
	if t.Observer.FrameQueue == 0 {
		t.Observer.FrameQueue = 64
	}
	if t.Observer.ZstdLevel == 0 {
		t.Observer.ZstdLevel = 1
	}
}

// WorldSize is the edge length of the world cube.
func (t Tuning) WorldSize() int { return 1 << t.World.MaxDepth }

func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	return Parse(raw)
}

// Parse validates a YAML document against the embedded schema and decodes it.
func Parse(raw []byte) (Tuning, error) {
	var t Tuning
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if doc != nil {
		if err := validate(doc); err != nil {
			return t, fmt.Errorf("tuning.yaml: %w", err)
		}
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

var schema = jsonschema.MustCompileString("tuning.schema.json", schemaJSON)

// validate re-encodes the YAML tree as JSON so the validator sees JSON types.
func validate(doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("schema: %s", strings.TrimSpace(err.Error()))
	}
	return nil
}
