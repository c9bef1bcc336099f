package config

const (
	defaultDataDir              = "ml-32m"
	defaultOutputName           = "movies_enriched_big.csv"
	defaultCheckpointName       = "enrichment_checkpoint.db"
	defaultSemanticName         = "movies_enriched_with_semantic.jsonl.zst"
	defaultRatingStatsName      = "movie_rating_stats.csv"
	defaultLogDir               = "~/.local/share/reelmeta/logs"
	defaultTMDBLanguage         = "en-US"
	defaultTMDBBaseURL          = "https://api.themoviedb.org/3"
	defaultRequestsPerSecond    = 48
	defaultTMDBRequestTimeout   = 10
	defaultRateLimitWaitSeconds = 10
	defaultTMDBMaxRetries       = 6
	defaultCastLimit            = 5
	defaultWorkers              = 8
	defaultCheckpointInterval   = 100
	defaultSampleCount          = 3
	defaultSynopsisWordLimit    = 200
	defaultEmbedder             = "hashing"
	defaultEmbeddingDimensions  = 384
	defaultEmbeddingBatchSize   = 64
	defaultEmbeddingConcurrency = 4
	defaultEmbeddingBaseURL     = "https://api.openai.com/v1"
	defaultEmbeddingModel       = "text-embedding-3-small"
	defaultEmbeddingTimeout     = 60
	defaultStoragePrefix        = "movielens"
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		TMDB: TMDB{
			Language:             defaultTMDBLanguage,
			BaseURL:              defaultTMDBBaseURL,
			RequestsPerSecond:    defaultRequestsPerSecond,
			RequestTimeout:       defaultTMDBRequestTimeout,
			RateLimitWaitSeconds: defaultRateLimitWaitSeconds,
			MaxRetries:           defaultTMDBMaxRetries,
			CastLimit:            defaultCastLimit,
		},
		Enrichment: Enrichment{
			Workers:            defaultWorkers,
			CheckpointInterval: defaultCheckpointInterval,
			SampleCount:        defaultSampleCount,
			Progress:           true,
		},
		Semantic: Semantic{
			SynopsisWordLimit: defaultSynopsisWordLimit,
			Embedder:          defaultEmbedder,
			Dimensions:        defaultEmbeddingDimensions,
			BatchSize:         defaultEmbeddingBatchSize,
			Concurrency:       defaultEmbeddingConcurrency,
			BaseURL:           defaultEmbeddingBaseURL,
			Model:             defaultEmbeddingModel,
			TimeoutSeconds:    defaultEmbeddingTimeout,
		},
		Storage: Storage{
			Prefix: defaultStoragePrefix,
			UseSSL: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Enrichment:     true,
			Semantic:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
