package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/dbh"
)

type Config struct {
	DB        dbh.DBConfig    `json:"db"`
	Storage   StorageConfig   `json:"storage"`
	NN        NNConfig        `json:"nn"`
	Identity  IdentityConfig  `json:"identity"`
	Video     VideoConfig     `json:"video"`
	Retention RetentionConfig `json:"retention"`

	MaxUploadSizeMB int64 `json:"maxUploadSizeMB"` // Default 64
}

type StorageConfig struct {
	Root    string `json:"root"`    // Base directory; the other paths default to subdirectories of this
	Uploads string `json:"uploads"` // Raw uploaded media
	Runs    string `json:"runs"`    // Per-invocation working directories
	Public  string `json:"public"`  // Browser-servable artifacts
}

type NNConfig struct {
	Model         string   `json:"model"`         // Path to the .onnx model file
	Sessions      int      `json:"sessions"`      // Size of the inference session pool
	Classes       []string `json:"classes"`       // Relevance allow-list (empty = built-in default)
	MinConfidence float32  `json:"minConfidence"` // 0 = default threshold
}

type IdentityConfig struct {
	// API key is read from the SIGHTD_IDENTITY_API_KEY environment variable,
	// not from this file, so that the config can be committed.
	BaseURL string `json:"baseURL"` // Empty = Google Identity Toolkit production URL
}

type VideoConfig struct {
	Async   bool `json:"async"`   // Return immediately from video uploads and let the client poll
	FPS     int  `json:"fps"`     // Frame rate of the re-assembled output video. Default 30
	Workers int  `json:"workers"` // Video job worker pool size. Default 1
}

type RetentionConfig struct {
	MaxAgeHours int `json:"maxAgeHours"` // Uploads and run dirs older than this are swept. 0 = default 24
}

func LoadConfig(filename string) (*Config, error) {
	cfg := &Config{}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error parsing config file %v: %w", filename, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Root == "" {
		c.Storage.Root = "sightd-data"
	}
	if c.Storage.Uploads == "" {
		c.Storage.Uploads = filepath.Join(c.Storage.Root, "uploads")
	}
	if c.Storage.Runs == "" {
		c.Storage.Runs = filepath.Join(c.Storage.Root, "runs")
	}
	if c.Storage.Public == "" {
		c.Storage.Public = filepath.Join(c.Storage.Root, "public")
	}
	if c.DB.Driver == "" {
		c.DB = dbh.MakeSqliteConfig(filepath.Join(c.Storage.Root, "sightd.sqlite"))
	}
	if c.MaxUploadSizeMB <= 0 {
		c.MaxUploadSizeMB = 64
	}
	if c.NN.Sessions <= 0 {
		c.NN.Sessions = 2
	}
	if c.Video.FPS <= 0 {
		c.Video.FPS = 30
	}
	if c.Video.Workers <= 0 {
		c.Video.Workers = 1
	}
	if c.Retention.MaxAgeHours <= 0 {
		c.Retention.MaxAgeHours = 24
	}
}
