package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTMDB()
	c.normalizeEnrichment()
	c.normalizeSemantic()
	c.normalizeStorage()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	derived := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.output_file", &c.Paths.OutputFile, defaultOutputName},
		{"paths.checkpoint_file", &c.Paths.CheckpointFile, defaultCheckpointName},
		{"paths.semantic_file", &c.Paths.SemanticFile, defaultSemanticName},
		{"paths.rating_stats_file", &c.Paths.RatingStatsFile, defaultRatingStatsName},
	}
	for _, entry := range derived {
		if strings.TrimSpace(*entry.value) == "" {
			*entry.value = filepath.Join(c.Paths.DataDir, entry.fallback)
		}
		if *entry.value, err = expandPath(*entry.value); err != nil {
			return fmt.Errorf("%s: %w", entry.key, err)
		}
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.RequestsPerSecond <= 0 {
		c.TMDB.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.TMDB.RequestTimeout <= 0 {
		c.TMDB.RequestTimeout = defaultTMDBRequestTimeout
	}
	if c.TMDB.RateLimitWaitSeconds <= 0 {
		c.TMDB.RateLimitWaitSeconds = defaultRateLimitWaitSeconds
	}
	if c.TMDB.MaxRetries <= 0 {
		c.TMDB.MaxRetries = defaultTMDBMaxRetries
	}
	if c.TMDB.CastLimit <= 0 {
		c.TMDB.CastLimit = defaultCastLimit
	}
}

func (c *Config) normalizeEnrichment() {
	if c.Enrichment.Workers <= 0 {
		c.Enrichment.Workers = defaultWorkers
	}
	if c.Enrichment.CheckpointInterval <= 0 {
		c.Enrichment.CheckpointInterval = defaultCheckpointInterval
	}
	if c.Enrichment.SampleCount < 0 {
		c.Enrichment.SampleCount = 0
	}
}

func (c *Config) normalizeSemantic() {
	c.Semantic.Embedder = strings.ToLower(strings.TrimSpace(c.Semantic.Embedder))
	if c.Semantic.Embedder == "" {
		c.Semantic.Embedder = defaultEmbedder
	}
	if c.Semantic.SynopsisWordLimit <= 0 {
		c.Semantic.SynopsisWordLimit = defaultSynopsisWordLimit
	}
	if c.Semantic.Dimensions <= 0 {
		c.Semantic.Dimensions = defaultEmbeddingDimensions
	}
	if c.Semantic.BatchSize <= 0 {
		c.Semantic.BatchSize = defaultEmbeddingBatchSize
	}
	if c.Semantic.Concurrency <= 0 {
		c.Semantic.Concurrency = defaultEmbeddingConcurrency
	}
	c.Semantic.BaseURL = strings.TrimRight(strings.TrimSpace(c.Semantic.BaseURL), "/")
	if c.Semantic.BaseURL == "" {
		c.Semantic.BaseURL = defaultEmbeddingBaseURL
	}
	c.Semantic.Model = strings.TrimSpace(c.Semantic.Model)
	if c.Semantic.Model == "" {
		c.Semantic.Model = defaultEmbeddingModel
	}
	if c.Semantic.TimeoutSeconds <= 0 {
		c.Semantic.TimeoutSeconds = defaultEmbeddingTimeout
	}
	c.Semantic.APIKey = strings.TrimSpace(c.Semantic.APIKey)
	if c.Semantic.APIKey == "" {
		if value, ok := os.LookupEnv("EMBEDDING_API_KEY"); ok {
			c.Semantic.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Semantic.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.AccessKey == "" {
		if value, ok := os.LookupEnv("REELMETA_S3_ACCESS_KEY"); ok {
			c.Storage.AccessKey = value
		}
	}
	if c.Storage.SecretKey == "" {
		if value, ok := os.LookupEnv("REELMETA_S3_SECRET_KEY"); ok {
			c.Storage.SecretKey = value
		}
	}
	c.Storage.AccessKey = strings.TrimSpace(c.Storage.AccessKey)
	c.Storage.SecretKey = strings.TrimSpace(c.Storage.SecretKey)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
