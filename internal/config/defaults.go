package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/tanya/data/db/faqs.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/tanya/data/indices/faqs.vec"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/tanya/data/indices/bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 128
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Query.DefaultTopK == 0 {
		cfg.Query.DefaultTopK = 3
	}
	if cfg.Query.MaxTopK == 0 {
		cfg.Query.MaxTopK = 100
	}
	if cfg.Query.Threshold == 0 {
		cfg.Query.Threshold = 0.6
	}
	if cfg.Query.HighConfidence == 0 {
		cfg.Query.HighConfidence = 0.8
	}
	if cfg.Query.SimilarTopK == 0 {
		cfg.Query.SimilarTopK = 5
	}
	if cfg.Query.SimilarThreshold == 0 {
		cfg.Query.SimilarThreshold = 0.7
	}
	if cfg.Source.TokenEnv == "" {
		cfg.Source.TokenEnv = "TANYA_SOURCE_TOKEN"
	}
	if cfg.Source.TimeoutSeconds == 0 {
		cfg.Source.TimeoutSeconds = 30
	}
}
