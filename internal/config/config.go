// Package config loads audiomind settings from an optional YAML file and
// AUDIOMIND_* environment variables. Environment values win over the file;
// the file wins over the envDefault tags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/mddudha/audiomind-app/internal/db"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "AUDIOMIND_"

// Config holds every runtime setting.
type Config struct {
	DataDir    string `yaml:"data_dir"    env:"DATA_DIR"`
	DBPath     string `yaml:"db_path"     env:"DB_PATH"`
	SocketPath string `yaml:"socket_path" env:"SOCKET_PATH"`
	StatusFile string `yaml:"status_file" env:"STATUS_FILE"`

	Endpoint      string        `yaml:"endpoint"       env:"ENDPOINT"       envDefault:"http://127.0.0.1:8888/transcribe"`
	Model         string        `yaml:"model"          env:"MODEL"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"   env:"HTTP_TIMEOUT"`
	RetryAttempts int           `yaml:"retry_attempts" env:"RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay    time.Duration `yaml:"retry_delay"    env:"RETRY_DELAY"    envDefault:"1s"`

	SegmentDuration time.Duration `yaml:"segment_duration"  env:"SEGMENT_DURATION"  envDefault:"30s"`
	FramesPerBuffer int           `yaml:"frames_per_buffer" env:"FRAMES_PER_BUFFER" envDefault:"1024"`
	LevelInterval   time.Duration `yaml:"level_interval"    env:"LEVEL_INTERVAL"    envDefault:"100ms"`
	RouteLossPolicy string        `yaml:"route_loss_policy" env:"ROUTE_LOSS_POLICY" envDefault:"stop"`

	Converter         string `yaml:"converter"           env:"CONVERTER"           envDefault:"native"`
	ConvertSampleRate int    `yaml:"convert_sample_rate" env:"CONVERT_SAMPLE_RATE" envDefault:"16000"`
	FFmpegPath        string `yaml:"ffmpeg_path"         env:"FFMPEG_PATH"         envDefault:"ffmpeg"`

	Engine   string `yaml:"engine"    env:"ENGINE"    envDefault:"mic"`
	WAVInput string `yaml:"wav_input" env:"WAV_INPUT"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `yaml:"log_file"  env:"LOG_FILE"`
}

// Default returns the built-in settings with derived paths filled in.
func Default() Config {
	var cfg Config
	// An empty environment leaves only the envDefault values.
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	cfg.fillPaths()
	return cfg
}

// Load reads the YAML file at path, then applies the environment. An empty
// path falls back to $AUDIOMIND_CONFIG; no file at all is not an error.
func Load(path string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	// Defaults were applied above; this pass must only set what is present.
	opts := env.Options{Prefix: EnvPrefix, DefaultValueTagName: "envNoDefault"}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg.fillPaths()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) fillPaths() {
	if c.DataDir == "" {
		c.DataDir = db.DefaultDataDir()
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "audiomind.sqlite")
	}
	if c.SocketPath == "" {
		c.SocketPath = filepath.Join(c.DataDir, "audiomind.sock")
	}
	if c.StatusFile == "" {
		c.StatusFile = filepath.Join(c.DataDir, "status.json")
	}
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("endpoint %q must be an http(s) URL", c.Endpoint))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry_attempts must be at least 1, got %d", c.RetryAttempts))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry_delay must not be negative"))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("http_timeout must not be negative"))
	}
	if c.SegmentDuration <= 0 {
		errs = append(errs, fmt.Errorf("segment_duration must be positive"))
	}
	if c.LevelInterval <= 0 {
		errs = append(errs, fmt.Errorf("level_interval must be positive"))
	}
	if c.FramesPerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("frames_per_buffer must be positive"))
	}
	if c.ConvertSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("convert_sample_rate must be positive"))
	}

	switch c.RouteLossPolicy {
	case "stop", "pause":
	default:
		errs = append(errs, fmt.Errorf("route_loss_policy %q must be stop or pause", c.RouteLossPolicy))
	}
	switch c.Converter {
	case "native", "ffmpeg":
	default:
		errs = append(errs, fmt.Errorf("converter %q must be native or ffmpeg", c.Converter))
	}
	switch c.Engine {
	case "mic":
	case "wav":
		if c.WAVInput == "" {
			errs = append(errs, errors.New("engine wav requires wav_input"))
		}
	default:
		errs = append(errs, fmt.Errorf("engine %q must be mic or wav", c.Engine))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q must be debug, info, warn or error", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
