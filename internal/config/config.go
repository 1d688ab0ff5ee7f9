// Package config loads settings from flags, environment and an optional
// YAML file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/justestif/go-mood-classifier/internal/classifier"
	"github.com/justestif/go-mood-classifier/internal/clustering"
	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/evaluate"
	"github.com/justestif/go-mood-classifier/internal/features"
)

// FileName is the config file searched for in the working directory and $HOME.
const FileName = ".mood-classifier"

// EnvPrefix prefixes every environment override, e.g. MOOD_EXTRACT_WORKERS.
const EnvPrefix = "MOOD"

type Config struct {
	Log        Log        `mapstructure:"log"`
	Paths      Paths      `mapstructure:"paths"`
	Extract    Extract    `mapstructure:"extract"`
	Transform  Transform  `mapstructure:"transform"`
	Classifier Classifier `mapstructure:"classifier"`
	Cluster    Cluster    `mapstructure:"cluster"`
	Evaluate   Evaluate   `mapstructure:"evaluate"`
	Spotify    Spotify    `mapstructure:"spotify"`
	Database   Database   `mapstructure:"database"`
	Serve      Serve      `mapstructure:"serve"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Paths locate the stage inputs and outputs. Relative paths are resolved
// against DataDir when the config is loaded.
type Paths struct {
	DataDir     string `mapstructure:"data_dir"`
	Manifest    string `mapstructure:"manifest"`
	Labels      string `mapstructure:"labels"`
	AudioDir    string `mapstructure:"audio_dir"`
	Features    string `mapstructure:"features"`
	Labeled     string `mapstructure:"labeled"`
	Schema      string `mapstructure:"schema"`
	Model       string `mapstructure:"model"`
	Predictions string `mapstructure:"predictions"`
	Clusters    string `mapstructure:"clusters"`
	Report      string `mapstructure:"report"`
}

type Extract struct {
	WindowSize    int  `mapstructure:"window_size"`
	HopLength     int  `mapstructure:"hop_length"`
	NumMFCC       int  `mapstructure:"n_mfcc"`
	NumMels       int  `mapstructure:"n_mels"`
	Workers       int  `mapstructure:"workers"` // 0 uses every CPU
	Progress      bool `mapstructure:"progress"`
	FetchAttempts uint `mapstructure:"fetch_attempts"`
}

type Transform struct {
	Standardize bool `mapstructure:"standardize"`
}

type Classifier struct {
	Trees          int     `mapstructure:"trees"`
	MaxDepth       int     `mapstructure:"max_depth"`
	MinSamplesLeaf int     `mapstructure:"min_samples_leaf"`
	TestRatio      float64 `mapstructure:"test_ratio"`
	Seed           uint64  `mapstructure:"seed"`
}

type Cluster struct {
	Seed          uint64 `mapstructure:"seed"`
	Restarts      int    `mapstructure:"restarts"`
	MaxIterations int    `mapstructure:"max_iterations"`
}

type Evaluate struct {
	Scope string `mapstructure:"scope"`
	XLSX  string `mapstructure:"xlsx"`
}

type Spotify struct {
	Playlist     string `mapstructure:"playlist"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type Database struct {
	URL string `mapstructure:"url"`
}

type Serve struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.manifest", "provided/tracks.csv")
	v.SetDefault("paths.labels", "provided/mood_relation.csv")
	v.SetDefault("paths.audio_dir", "audio")
	v.SetDefault("paths.features", "extracted/tracks_features.csv")
	v.SetDefault("paths.labeled", "processed/transformed_data.csv")
	v.SetDefault("paths.schema", "processed/feature_schema.json")
	v.SetDefault("paths.model", "outputs/model.gob")
	v.SetDefault("paths.predictions", "outputs/predicted_moods.csv")
	v.SetDefault("paths.clusters", "outputs/clustered_tracks.csv")
	v.SetDefault("paths.report", "outputs/evaluation_report.yaml")

	fc := features.DefaultConfig()
	v.SetDefault("extract.window_size", fc.WindowSize)
	v.SetDefault("extract.hop_length", fc.HopLength)
	v.SetDefault("extract.n_mfcc", fc.NumMFCC)
	v.SetDefault("extract.n_mels", fc.NumMels)
	v.SetDefault("extract.workers", 0)
	v.SetDefault("extract.progress", true)
	v.SetDefault("extract.fetch_attempts", 3)

	v.SetDefault("transform.standardize", true)

	cp := classifier.DefaultParams()
	v.SetDefault("classifier.trees", cp.Trees)
	v.SetDefault("classifier.max_depth", cp.MaxDepth)
	v.SetDefault("classifier.min_samples_leaf", cp.MinSamplesLeaf)
	v.SetDefault("classifier.test_ratio", 0.2)
	v.SetDefault("classifier.seed", cp.Seed)

	kc := clustering.DefaultConfig()
	v.SetDefault("cluster.seed", kc.Seed)
	v.SetDefault("cluster.restarts", kc.Restarts)
	v.SetDefault("cluster.max_iterations", kc.MaxIterations)

	v.SetDefault("evaluate.scope", string(evaluate.ScopeTest))
	v.SetDefault("evaluate.xlsx", "")

	v.SetDefault("spotify.playlist", "")
	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_secret", "")
	v.SetDefault("database.url", "")
	v.SetDefault("serve.addr", "127.0.0.1:8080")
}

// BindEnv wires MOOD_* overrides plus the conventional Spotify and
// database variables.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range map[string]string{
		"spotify.client_id":     "SPOTIFY_ID",
		"spotify.client_secret": "SPOTIFY_SECRET",
		"database.url":          "DATABASE_URL",
	} {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

// ReadFile reads the explicit config file, or searches for FileName in the
// working directory and then $HOME. A missing search result is not an error.
func ReadFile(v *viper.Viper, explicit string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", explicit, err)
		}
		return nil
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// Load builds a Config from v after defaults, environment and file have
// been applied, and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Paths.resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no file or environment applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.Paths.resolve()
	return &cfg
}

func (p *Paths) resolve() {
	for _, path := range []*string{
		&p.Manifest, &p.Labels, &p.AudioDir, &p.Features, &p.Labeled,
		&p.Schema, &p.Model, &p.Predictions, &p.Clusters, &p.Report,
	} {
		if *path != "" && !filepath.IsAbs(*path) {
			*path = filepath.Join(p.DataDir, *path)
		}
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if err := c.Features().Validate(); err != nil {
		return err
	}
	if c.Extract.Workers < 0 {
		return &domain.ConfigurationError{Field: "extract.workers", Reason: fmt.Sprintf("%d must not be negative", c.Extract.Workers)}
	}
	if c.Extract.FetchAttempts < 1 {
		return &domain.ConfigurationError{Field: "extract.fetch_attempts", Reason: "must be at least 1"}
	}
	if err := c.ForestParams().Validate(); err != nil {
		return err
	}
	if r := c.Classifier.TestRatio; !(r > 0 && r < 1) {
		return &domain.ConfigurationError{Field: "classifier.test_ratio", Reason: fmt.Sprintf("%v must be strictly between 0 and 1", r)}
	}
	if err := c.Clustering().Validate(); err != nil {
		return err
	}
	if _, err := evaluate.ParseScope(c.Evaluate.Scope); err != nil {
		return err
	}
	if x := c.Evaluate.XLSX; x != "" && !strings.EqualFold(filepath.Ext(x), ".xlsx") {
		return &domain.ConfigurationError{Field: "evaluate.xlsx", Reason: fmt.Sprintf("%q must end in .xlsx", x)}
	}
	switch strings.ToLower(filepath.Ext(c.Paths.Report)) {
	case ".yaml", ".yml", ".json":
	default:
		return &domain.ConfigurationError{Field: "paths.report", Reason: fmt.Sprintf("%q must end in .yaml, .yml or .json", c.Paths.Report)}
	}
	return nil
}

// Features returns the feature-extraction parameters.
func (c *Config) Features() features.Config {
	return features.Config{
		WindowSize: c.Extract.WindowSize,
		HopLength:  c.Extract.HopLength,
		NumMFCC:    c.Extract.NumMFCC,
		NumMels:    c.Extract.NumMels,
	}
}

// ForestParams returns the classifier hyperparameters.
func (c *Config) ForestParams() classifier.Params {
	return classifier.Params{
		Trees:          c.Classifier.Trees,
		MaxDepth:       c.Classifier.MaxDepth,
		MinSamplesLeaf: c.Classifier.MinSamplesLeaf,
		Seed:           c.Classifier.Seed,
	}
}

// Clustering returns the k-means parameters.
func (c *Config) Clustering() clustering.Config {
	return clustering.Config{
		Seed:          c.Cluster.Seed,
		Restarts:      c.Cluster.Restarts,
		MaxIterations: c.Cluster.MaxIterations,
	}
}

// Scope returns the evaluation scope. Validate has already checked it.
func (c *Config) Scope() evaluate.Scope {
	return evaluate.Scope(c.Evaluate.Scope)
}
