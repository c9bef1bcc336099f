package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains dataset, output, and state locations.
type Paths struct {
	DataDir         string `toml:"data_dir"`
	OutputFile      string `toml:"output_file"`
	CheckpointFile  string `toml:"checkpoint_file"`
	SemanticFile    string `toml:"semantic_file"`
	RatingStatsFile string `toml:"rating_stats_file"`
	LogDir          string `toml:"log_dir"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey               string  `toml:"api_key"`
	BaseURL              string  `toml:"base_url"`
	Language             string  `toml:"language"`
	RequestsPerSecond    float64 `toml:"requests_per_second"`
	RequestTimeout       int     `toml:"request_timeout"`
	RateLimitWaitSeconds int     `toml:"rate_limit_wait_seconds"`
	MaxRetries           int     `toml:"max_retries"`
	CastLimit            int     `toml:"cast_limit"`
}

// Enrichment controls the batch enrichment run.
type Enrichment struct {
	Workers            int  `toml:"workers"`
	CheckpointInterval int  `toml:"checkpoint_interval"`
	KeepCheckpoint     bool `toml:"keep_checkpoint"`
	RetryFailed        bool `toml:"retry_failed"`
	SampleCount        int  `toml:"sample_count"`
	Progress           bool `toml:"progress"`
}

// Semantic controls semantic text construction and embedding.
type Semantic struct {
	SynopsisWordLimit int    `toml:"synopsis_word_limit"`
	Embedder          string `toml:"embedder"`
	Dimensions        int    `toml:"dimensions"`
	BatchSize         int    `toml:"batch_size"`
	Concurrency       int    `toml:"concurrency"`
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// Storage contains S3-compatible object storage settings used by publish.
type Storage struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Enrichment     bool   `toml:"enrichment"`
	Semantic       bool   `toml:"semantic"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   bool   `toml:"file"`
}

// Config encapsulates all configuration values for reelmeta.
//
// Configuration sections by subsystem:
//   - Paths: MovieLens input directory and generated artifacts
//   - TMDB: metadata source for enrichment
//   - Enrichment: worker count, checkpoint cadence, resume behaviour
//   - Semantic: structured text and embedding backend
//   - Storage: optional S3-compatible publication target
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	TMDB          TMDB          `toml:"tmdb"`
	Enrichment    Enrichment    `toml:"enrichment"`
	Semantic      Semantic      `toml:"semantic"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelmeta/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelmeta.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories that hold generated artifacts and logs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Paths.OutputFile),
		filepath.Dir(c.Paths.CheckpointFile),
		filepath.Dir(c.Paths.SemanticFile),
	}
	if c.Logging.File {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SetDataDir points the dataset directory at dir. Output files still at
// their default location inside the previous data directory move with it.
func (c *Config) SetDataDir(dir string) error {
	expanded, err := expandPath(dir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	previous := c.Paths.DataDir
	rebase := []struct {
		value *string
		name  string
	}{
		{&c.Paths.OutputFile, defaultOutputName},
		{&c.Paths.CheckpointFile, defaultCheckpointName},
		{&c.Paths.SemanticFile, defaultSemanticName},
		{&c.Paths.RatingStatsFile, defaultRatingStatsName},
	}
	for _, entry := range rebase {
		if *entry.value == filepath.Join(previous, entry.name) {
			*entry.value = filepath.Join(expanded, entry.name)
		}
	}
	c.Paths.DataDir = expanded
	return nil
}

// MoviesCSV returns the path of movies.csv inside the dataset directory.
func (c *Config) MoviesCSV() string {
	return filepath.Join(c.Paths.DataDir, "movies.csv")
}

// LinksCSV returns the path of links.csv inside the dataset directory.
func (c *Config) LinksCSV() string {
	return filepath.Join(c.Paths.DataDir, "links.csv")
}

// RatingsCSV returns the path of ratings.csv inside the dataset directory.
func (c *Config) RatingsCSV() string {
	return filepath.Join(c.Paths.DataDir, "ratings.csv")
}

// LogFile is the file that run logs are appended to when logging.file is set.
func (c *Config) LogFile() string {
	return filepath.Join(c.Paths.LogDir, "reelmeta.log")
}

// LockPath returns the single-instance lock file guarding the checkpoint.
func (c *Config) LockPath() string {
	return c.Paths.CheckpointFile + ".lock"
}

// TMDBRequestTimeout returns the per-request HTTP timeout.
func (c *Config) TMDBRequestTimeout() time.Duration {
	return time.Duration(c.TMDB.RequestTimeout) * time.Second
}

// RateLimitWait returns the fallback wait applied after a 429 without Retry-After.
func (c *Config) RateLimitWait() time.Duration {
	return time.Duration(c.TMDB.RateLimitWaitSeconds) * time.Second
}

// RequireTMDB reports a descriptive error when no TMDB API key is available.
// Only commands that talk to TMDB call it, so offline commands work without a key.
func (c *Config) RequireTMDB() error {
	if strings.TrimSpace(c.TMDB.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/reelmeta/config.toml"
	}
	return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'reelmeta config init')", defaultPath)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
