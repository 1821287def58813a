package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// FailFast stops processing remaining links after the first failing
	// download. The default keeps going and only remembers the last
	// non-zero exit code.
	FailFast        bool     `json:"fail_fast"        yaml:"fail_fast"`
	DownloadTimeout Duration `json:"download_timeout" yaml:"download_timeout"`
	AudioExts       []string `json:"audio_exts"       yaml:"audio_exts"`
}

// Duration accepts Go duration strings such as "30m" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); nil != err {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if nil != err {
		return fmt.Errorf("failed to parse duration %q: %v", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func Default() *Config {
	return &Config{
		FailFast:        false,
		DownloadTimeout: Duration(time.Hour),
		AudioExts:       []string{".mp3", ".flac", ".m4a"},
	}
}

func (cfg *Config) validate() error {
	if cfg.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be positive, got %s", cfg.DownloadTimeout.Std())
	}

	for _, ext := range cfg.AudioExts {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("audio extension %q must start with a dot", ext)
		}
	}

	return nil
}

func (cfg *Config) applyDefaults() {
	def := Default()
	if cfg.DownloadTimeout == 0 {
		cfg.DownloadTimeout = def.DownloadTimeout
	}
	if len(cfg.AudioExts) == 0 {
		cfg.AudioExts = def.AudioExts
	}
}

func FromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if nil != err {
		return nil, fmt.Errorf("failed to read config file %q: %v", filePath, err)
	}

	return FromString(string(data))
}

func FromString(data string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(data), &cfg); nil != err {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); nil != err {
		return nil, fmt.Errorf("validation failed: %v", err)
	}

	return &cfg, nil
}
