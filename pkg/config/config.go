package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"image2chk/pkg/imaging"
)

// Config holds all configuration options for image2chk
type Config struct {
	// Conversion inputs
	Convert ConvertConfig `yaml:"convert" toml:"convert" json:"convert"`

	// Output file settings
	Output OutputConfig `yaml:"output" toml:"output" json:"output"`

	// Trap preview rendering
	Preview PreviewConfig `yaml:"preview" toml:"preview" json:"preview"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`
}

// ConvertConfig holds the conversion inputs and trap extraction settings
type ConvertConfig struct {
	Image          string `yaml:"image" toml:"image" json:"image"`
	Stub           string `yaml:"stub" toml:"stub" json:"stub"`
	Template       string `yaml:"template" toml:"template" json:"template"`
	Threshold      string `yaml:"threshold" toml:"threshold" json:"threshold"`
	Invert         bool   `yaml:"invert" toml:"invert" json:"invert"`
	ScalePotential bool   `yaml:"scale_potential" toml:"scale_potential" json:"scale_potential"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	Directory string `yaml:"directory" toml:"directory" json:"directory"`
	Extension string `yaml:"extension" toml:"extension" json:"extension"`
	Compress  bool   `yaml:"compress" toml:"compress" json:"compress"`
	Preview   bool   `yaml:"preview" toml:"preview" json:"preview"`
}

// PreviewConfig holds trap image settings. Sizes are in inches and points.
type PreviewConfig struct {
	Width       float64 `yaml:"width" toml:"width" json:"width"`
	Height      float64 `yaml:"height" toml:"height" json:"height"`
	PointRadius float64 `yaml:"point_radius" toml:"point_radius" json:"point_radius"`
	Name        string  `yaml:"name" toml:"name" json:"name"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" json:"level"`
	File  string `yaml:"file" toml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with the stock conversion defaults
func DefaultConfig() *Config {
	return &Config{
		Convert: ConvertConfig{
			Image:          "image.png",
			Stub:           "sim",
			Template:       "template.inp",
			Threshold:      "0.5",
			Invert:         false,
			ScalePotential: false,
		},
		Output: OutputConfig{
			Directory: "",
			Extension: "inp",
			Compress:  false,
			Preview:   false,
		},
		Preview: PreviewConfig{
			Width:       6,
			Height:      6,
			PointRadius: 1,
			Name:        "traps",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from IMAGE2CHK_* environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("IMAGE2CHK_IMAGE"); v != "" {
		c.Convert.Image = v
	}
	if v := os.Getenv("IMAGE2CHK_STUB"); v != "" {
		c.Convert.Stub = v
	}
	if v := os.Getenv("IMAGE2CHK_TEMPLATE"); v != "" {
		c.Convert.Template = v
	}
	if v := os.Getenv("IMAGE2CHK_THRESHOLD"); v != "" {
		c.Convert.Threshold = v
	}

	var errs []error
	for name, dst := range map[string]*bool{
		"IMAGE2CHK_INVERT":          &c.Convert.Invert,
		"IMAGE2CHK_SCALE_POTENTIAL": &c.Convert.ScalePotential,
		"IMAGE2CHK_COMPRESS":        &c.Output.Compress,
		"IMAGE2CHK_PREVIEW":         &c.Output.Preview,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		*dst = b
	}

	if v := os.Getenv("IMAGE2CHK_OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("IMAGE2CHK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IMAGE2CHK_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML or TOML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		return nil
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".image2chk.yaml",
		".image2chk.yml",
		".image2chk.toml",
		filepath.Join(home, ".config", "image2chk", "config.yaml"),
		filepath.Join(home, ".config", "image2chk", "config.toml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Convert.Image) == "" {
		errs = append(errs, errors.New("input image is required"))
	}
	if strings.TrimSpace(c.Convert.Stub) == "" {
		errs = append(errs, errors.New("output stub is required"))
	}
	if _, err := imaging.ParseThreshold(c.Convert.Threshold); err != nil {
		errs = append(errs, err)
	}

	if strings.Trim(c.Output.Extension, ". ") == "" {
		errs = append(errs, errors.New("output extension is required"))
	}

	if c.Preview.Width <= 0 || c.Preview.Height <= 0 {
		errs = append(errs, errors.New("preview size must be positive"))
	}
	if c.Preview.PointRadius <= 0 {
		errs = append(errs, errors.New("preview point radius must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level: %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Marshal encodes the configuration as TOML when path ends in ".toml" and
// as YAML otherwise
func (c *Config) Marshal(path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Marshal(*c)
	}
	return yaml.Marshal(c)
}

// Save writes the configuration in the format chosen by Marshal
func (c *Config) Save(path string) error {
	data, err := c.Marshal(path)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges flags the user set explicitly
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["image"].(string); ok {
		c.Convert.Image = v
	}
	if v, ok := flags["stub"].(string); ok {
		c.Convert.Stub = v
	}
	if v, ok := flags["template"].(string); ok {
		c.Convert.Template = v
	}
	if v, ok := flags["threshold"].(string); ok {
		c.Convert.Threshold = v
	}
	if v, ok := flags["invert"].(bool); ok {
		c.Convert.Invert = v
	}
	if v, ok := flags["scale-potential"].(bool); ok {
		c.Convert.ScalePotential = v
	}
	if v, ok := flags["output-dir"].(string); ok {
		c.Output.Directory = v
	}
	if v, ok := flags["compress"].(bool); ok {
		c.Output.Compress = v
	}
	if v, ok := flags["preview"].(bool); ok {
		c.Output.Preview = v
	}
	if v, ok := flags["log-level"].(string); ok {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are not an error
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".image2chk.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
