package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"pathscrub/internal/logging"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileName is looked up from the working directory upwards.
	DefaultFileName = ".pathscrub.yaml"

	EnvConfig   = "PATHSCRUB_CONFIG"
	EnvRoot     = "ANONYMIZATION_ROOT_DIR"
	EnvMode     = "PATHSCRUB_MODE"
	EnvLogLevel = "PATHSCRUB_LOG_LEVEL"
)

// Output modes for pathscrub/auto and "pathscrub run".
const (
	ModeSubstitute = "substitute"
	ModeClassify   = "classify"
	ModeOff        = "off"
)

// ValidModes lists the accepted values of anonymizer.mode.
var ValidModes = []string{ModeSubstitute, ModeClassify, ModeOff}

// Config holds all pathscrub configuration.
type Config struct {
	Anonymizer AnonymizerConfig `yaml:"anonymizer"`
	Shim       ShimConfig       `yaml:"shim"`
	Plot       PlotConfig       `yaml:"plot"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AnonymizerConfig selects the root and how output is rewritten.
type AnonymizerConfig struct {
	Root string `yaml:"root"` // empty means the working directory
	Mode string `yaml:"mode"` // substitute, classify, off
}

// ShimConfig configures "pathscrub shim".
type ShimConfig struct {
	Dir          string `yaml:"dir"`
	FileName     string `yaml:"file_name"`
	ChecksumFile string `yaml:"checksum_file"`
	ImportPath   string `yaml:"import_path"`
}

// PlotConfig sets the canvas used by "pathscrub plot".
type PlotConfig struct {
	DPI         int     `yaml:"dpi"`
	Width       float64 `yaml:"width"`  // inches
	Height      float64 `yaml:"height"` // inches
	GIFDuration string  `yaml:"gif_duration"`
	Palette     string  `yaml:"palette"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`   // empty logs to stderr
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Anonymizer: AnonymizerConfig{
			Mode: ModeSubstitute,
		},
		Shim: ShimConfig{
			Dir:          ".",
			FileName:     "zz_pathscrub_auto.go",
			ChecksumFile: "pathscrub_shim.sum",
			ImportPath:   "pathscrub/auto",
		},
		Plot: PlotConfig{
			DPI:         300,
			Width:       9,
			Height:      3,
			GIFDuration: "5s",
			Palette:     "RMPY",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// DefaultPath returns $PATHSCRUB_CONFIG, else the nearest .pathscrub.yaml
// from the working directory upwards, else .pathscrub.yaml in the working
// directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		return DefaultFileName
	}
	if p, ok := FindConfig(wd); ok {
		return p
	}
	return filepath.Join(wd, DefaultFileName)
}

// FindConfig walks up from dir looking for DefaultFileName.
func FindConfig(dir string) (string, bool) {
	for {
		p := filepath.Join(dir, DefaultFileName)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Load reads the .env next to path (if present), then the YAML file at
// path, then environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	// Best-effort: variables already set in the environment win
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if root := strings.TrimSpace(os.Getenv(EnvRoot)); root != "" {
		c.Anonymizer.Root = root
	}
	if mode := strings.TrimSpace(os.Getenv(EnvMode)); mode != "" {
		c.Anonymizer.Mode = strings.ToLower(mode)
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		c.Logging.Level = level
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !slices.Contains(ValidModes, c.Anonymizer.Mode) {
		return fmt.Errorf("invalid anonymizer mode: %q (valid: %v)", c.Anonymizer.Mode, ValidModes)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q (valid: json, console)", c.Logging.Format)
	}
	if c.Plot.DPI <= 0 {
		return fmt.Errorf("plot dpi must be positive, got %d", c.Plot.DPI)
	}
	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		return fmt.Errorf("plot size must be positive, got %gx%g", c.Plot.Width, c.Plot.Height)
	}
	if c.Plot.GIFDuration != "" {
		if _, err := time.ParseDuration(c.Plot.GIFDuration); err != nil {
			return fmt.Errorf("invalid plot gif_duration: %w", err)
		}
	}
	if c.Shim.FileName != "" && !strings.HasSuffix(c.Shim.FileName, ".go") {
		return fmt.Errorf("shim file_name must end in .go, got %q", c.Shim.FileName)
	}
	return nil
}

// GetGIFDuration returns the animation length as a duration.
func (c *Config) GetGIFDuration() time.Duration {
	d, err := time.ParseDuration(c.Plot.GIFDuration)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// ResolveRoot returns the configured root made absolute, or the working
// directory when none is set.
func (c *Config) ResolveRoot() (string, error) {
	if c.Anonymizer.Root == "" {
		return os.Getwd()
	}
	root, err := filepath.Abs(c.Anonymizer.Root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %q: %w", c.Anonymizer.Root, err)
	}
	return root, nil
}
