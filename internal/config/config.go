// Package config loads the depthdemo YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/depthmesh"
)

// Config holds the demo driver settings.
type Config struct {
	// Backend is the HAL backend: "software" or "noop".
	Backend string `yaml:"backend"`

	// Grid size in depth samples.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	Frames  int `yaml:"frames"`
	Workers int `yaml:"workers"`

	// Method is "mesh" or "shader".
	Method string `yaml:"method"`

	// Readback is "async" or "safe".
	Readback string `yaml:"readback"`

	Remap       bool `yaml:"remap"`
	AutoExtents bool `yaml:"auto_extents"`

	DepthMultiplier  float32 `yaml:"depth_multiplier"`
	ImageScale       float32 `yaml:"image_scale"`
	LogNormalization float32 `yaml:"log_normalization"`

	// ColorImage is an optional TGA, PNG or JPEG file shown on the mesh.
	ColorImage string `yaml:"color_image"`

	OutputDir string `yaml:"output_dir"`
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Backend   string
	Method    string
	Frames    int
	OutputDir string
}

// Load reads a YAML config file.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve applies flags and fills empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	if flags.Backend != "" {
		c.Backend = flags.Backend
	}
	if flags.Method != "" {
		c.Method = flags.Method
	}
	if flags.Frames > 0 {
		c.Frames = flags.Frames
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}

	if c.Backend == "" {
		c.Backend = "software"
	}
	if c.Width <= 0 {
		c.Width = 256
	}
	if c.Height <= 0 {
		c.Height = 192
	}
	if c.Frames <= 0 {
		c.Frames = 60
	}
	if c.Method == "" {
		c.Method = depthmesh.MethodMesh.String()
	}
	if c.Readback == "" {
		c.Readback = depthmesh.ReadbackSafe.String()
	}

	def := depthmesh.DefaultParameters()
	if c.DepthMultiplier <= 0 {
		c.DepthMultiplier = def.DepthMultiplier
	}
	if c.ImageScale <= 0 {
		c.ImageScale = def.ImageScale
	}
	if c.LogNormalization < 0 {
		c.LogNormalization = def.LogNormalization
	}

	if c.OutputDir == "" {
		c.OutputDir = "out"
	}
}

// Parameters converts the config into mesher parameters.
func (c *Config) Parameters() (depthmesh.Parameters, error) {
	method, err := depthmesh.ParseMethod(c.Method)
	if err != nil {
		return depthmesh.Parameters{}, err
	}
	p := depthmesh.DefaultParameters()
	p.Method = method
	p.DepthMultiplier = c.DepthMultiplier
	p.ImageScale = c.ImageScale
	p.LogNormalization = c.LogNormalization
	p.UseColor = c.ColorImage != ""
	return p.Clamp(), nil
}

// ReadbackPolicy converts the readback setting.
func (c *Config) ReadbackPolicy() (depthmesh.ReadbackPolicy, error) {
	switch c.Readback {
	case "async":
		return depthmesh.ReadbackAsync, nil
	case "safe", "":
		return depthmesh.ReadbackSafe, nil
	default:
		return depthmesh.ReadbackAsync, fmt.Errorf("config: unknown readback policy %q", c.Readback)
	}
}
