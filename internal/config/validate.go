package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validateSemantic(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if _, err := url.ParseRequestURI(c.TMDB.BaseURL); err != nil {
		return fmt.Errorf("tmdb.base_url is invalid: %w", err)
	}
	if c.TMDB.RequestsPerSecond > 1000 {
		return errors.New("tmdb.requests_per_second must be at most 1000")
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	if c.Enrichment.Workers > 256 {
		return errors.New("enrichment.workers must be at most 256")
	}
	return nil
}

func (c *Config) validateSemantic() error {
	switch c.Semantic.Embedder {
	case "hashing":
	case "http":
		if _, err := url.ParseRequestURI(c.Semantic.BaseURL); err != nil {
			return fmt.Errorf("semantic.base_url is invalid: %w", err)
		}
	default:
		return fmt.Errorf("semantic.embedder must be \"hashing\" or \"http\", got %q", c.Semantic.Embedder)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.Enabled {
		return nil
	}
	if c.Storage.Endpoint == "" {
		return errors.New("storage.endpoint must be set when storage.enabled is true")
	}
	if strings.Contains(c.Storage.Endpoint, "://") {
		return errors.New("storage.endpoint must be host[:port] without a scheme (use storage.use_ssl)")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set when storage.enabled is true")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return errors.New("storage.access_key and storage.secret_key must be set when storage.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}
