package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override, e.g. SLSK_SLSKD_API_KEY.
const EnvPrefix = "SLSK"

type Config struct {
	LogLevel int `yaml:"log_level" envconfig:"LOG_LEVEL"`

	Slskd      SlskdConfig      `yaml:"slskd"`
	Download   DownloadConfig   `yaml:"download"`
	Library    LibraryConfig    `yaml:"library"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Tracklists TracklistsConfig `yaml:"tracklists"`
}

type SlskdConfig struct {
	Host              string  `yaml:"host" envconfig:"HOST"`
	APIKey            string  `yaml:"api_key" envconfig:"API_KEY"`
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
}

type DownloadConfig struct {
	Workers int `yaml:"workers" envconfig:"WORKERS"`
	// Breadth is how many ranked candidates are tried per track.
	Breadth int `yaml:"breadth" envconfig:"BREADTH"`

	Timeout            time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	PollInterval       time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
	SearchPollInterval time.Duration `yaml:"search_poll_interval" envconfig:"SEARCH_POLL_INTERVAL"`
	// SearchTimeout bounds the wait for a search to complete. Unset means one
	// minute; a negative value waits forever.
	SearchTimeout  time.Duration `yaml:"search_timeout" envconfig:"SEARCH_TIMEOUT"`
	SubmitAttempts int           `yaml:"submit_attempts" envconfig:"SUBMIT_ATTEMPTS"`
	SubmitDelay    time.Duration `yaml:"submit_delay" envconfig:"SUBMIT_DELAY"`
	PopTimeout     time.Duration `yaml:"pop_timeout" envconfig:"POP_TIMEOUT"`

	// StagingDir is where slskd writes finished downloads.
	StagingDir           string   `yaml:"staging_dir" envconfig:"STAGING_DIR"`
	DisallowedExtensions []string `yaml:"disallowed_extensions" envconfig:"DISALLOWED_EXTENSIONS"`
}

type LibraryConfig struct {
	Database string `yaml:"database" envconfig:"DATABASE"`
}

type StorageConfig struct {
	// Type of storage: "local" or "gcs"
	Type string `yaml:"type" envconfig:"TYPE"`

	// Local storage options
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`

	// GCS options
	Bucket          string `yaml:"bucket" envconfig:"BUCKET"`
	ObjectPrefix    string `yaml:"object_prefix" envconfig:"OBJECT_PREFIX"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

type ServerConfig struct {
	Port string `yaml:"port" envconfig:"PORT"`
}

// TracklistsConfig enables free-text tracklist lookups through a Google
// Programmable Search Engine. Both fields must be set.
type TracklistsConfig struct {
	GoogleAPIKey   string `yaml:"google_api_key" envconfig:"GOOGLE_API_KEY"`
	GoogleSearchID string `yaml:"google_search_id" envconfig:"GOOGLE_SEARCH_ID"`
}

func (t TracklistsConfig) SearchEnabled() bool {
	return t.GoogleAPIKey != "" && t.GoogleSearchID != ""
}

// Load reads the YAML file at path, fills in defaults and applies SLSK_*
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config *Config

	// Unmarshal the YAML data into the struct
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Slskd.Host == "" {
		c.Slskd.Host = "http://localhost:5030"
	}

	d := &c.Download
	if d.Workers == 0 {
		d.Workers = 5
	}
	if d.Breadth == 0 {
		d.Breadth = 1
	}
	if d.Timeout == 0 {
		d.Timeout = 5 * time.Minute
	}
	if d.PollInterval == 0 {
		d.PollInterval = time.Second
	}
	if d.SearchPollInterval == 0 {
		d.SearchPollInterval = time.Second
	}
	if d.SearchTimeout == 0 {
		d.SearchTimeout = time.Minute
	}
	if d.SubmitAttempts == 0 {
		d.SubmitAttempts = 3
	}
	if d.SubmitDelay == 0 {
		d.SubmitDelay = 2 * time.Second
	}
	if d.PopTimeout == 0 {
		d.PopTimeout = time.Second
	}
	if d.StagingDir == "" {
		d.StagingDir = "downloads"
	}
	if d.DisallowedExtensions == nil {
		d.DisallowedExtensions = []string{"m4a"}
	}

	if c.Library.Database == "" {
		c.Library.Database = "library.db"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = "output"
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Download.Workers < 0 {
		return fmt.Errorf("download.workers must not be negative, got %d", c.Download.Workers)
	}
	if c.Download.Breadth < 0 {
		return fmt.Errorf("download.breadth must not be negative, got %d", c.Download.Breadth)
	}
	if c.Download.SubmitAttempts < 1 {
		return fmt.Errorf("download.submit_attempts must be at least 1, got %d", c.Download.SubmitAttempts)
	}
	switch c.Storage.Type {
	case "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for gcs storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	return nil
}
