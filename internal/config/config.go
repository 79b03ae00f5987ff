// Package config implements the ambient configuration stack: YAML parsing
// via gopkg.in/yaml.v2, split into an app config (runtime/store/embedder
// settings) and a source config (the repositories to index), merged the way
// the teacher's config.LoadConfig does (internal/config/config.go).
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v2"
)

// Repository names one codebase to index (spec §3 Codebase root), plus the
// per-repository include-pattern convenience the teacher's SourceConfig
// does not have: these are validated with gobwas/glob at load time (display/
// validation only — the Path Filter's ignore-matching engine never imports
// this library; see DESIGN.md).
type Repository struct {
	Name       string   `yaml:"name"`
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions,omitempty"`
	Include    []string `yaml:"include,omitempty"`
	Ignore     []string `yaml:"ignore,omitempty"`
	Disabled   bool     `yaml:"disabled,omitempty"`
}

// SourceConfig lists the repositories a source.yaml describes.
type SourceConfig struct {
	Repositories []Repository `yaml:"repositories"`
}

// QdrantConfig configures the Vector Store driver (spec §6.2).
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"apikey"`
}

// EmbedderConfig configures the Ollama-compatible Embedder driver (spec §6.1).
type EmbedderConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"apikey"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// ChunkingConfig names the splitter and batching knobs spec §4.3/§4.7 define.
type ChunkingConfig struct {
	ChunkSize         int `yaml:"chunk_size"`
	ChunkOverlap      int `yaml:"chunk_overlap"`
	FileBatch         int `yaml:"file_batch"`
	MaxChunksPerBatch int `yaml:"max_chunks_per_batch"`
	MaxTokensPerBatch int `yaml:"max_tokens_per_batch"`
	MaxTokensPerChunk int `yaml:"max_tokens_per_chunk"`
	MaxTotalChunks    int `yaml:"max_total_chunks"`
}

// App holds process-wide runtime settings (spec §1.1/§1.2 ambient stack).
type App struct {
	LogLevel       string `yaml:"log_level,omitempty"`
	SnapshotDir    string `yaml:"snapshot_dir"`
	NumFileThreads int    `yaml:"num_file_threads,omitempty"` // parsed but not read by any component; the pipeline reads and splits a batch's files one at a time
}

// Config is the merged app+source configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Chunking ChunkingConfig `yaml:"chunking"`
	App      App            `yaml:"app"`
}

// LoadConfig reads appConfigPath and sourceConfigPath, expands environment
// variables in each, parses both as YAML, and merges the source repository
// list into the app config, mirroring the teacher's two-file split.
func LoadConfig(appConfigPath, sourceConfigPath string) (*Config, error) {
	if _, err := os.Stat(appConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("app config file does not exist: %s", appConfigPath)
	}
	if _, err := os.Stat(sourceConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("source config file does not exist: %s", sourceConfigPath)
	}

	dataApp, err := os.ReadFile(appConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read app config file: %w", err)
	}
	dataSource, err := os.ReadFile(sourceConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(dataApp))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal app config: %w", err)
	}

	var source SourceConfig
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(dataSource))), &source); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source config: %w", err)
	}
	cfg.Source = source

	applyDefaults(&cfg)

	if err := validateRepositories(&cfg); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero-valued chunking knobs with spec §4.7's defaults,
// applied in Go after unmarshal per spec §1.2 (not a defaults library).
func applyDefaults(cfg *Config) {
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.FileBatch == 0 {
		cfg.Chunking.FileBatch = 10
	}
	if cfg.Chunking.MaxChunksPerBatch == 0 {
		cfg.Chunking.MaxChunksPerBatch = 100
	}
	if cfg.Chunking.MaxTokensPerBatch == 0 {
		cfg.Chunking.MaxTokensPerBatch = 200_000
	}
	if cfg.Chunking.MaxTokensPerChunk == 0 {
		cfg.Chunking.MaxTokensPerChunk = 250_000
	}
	if cfg.Chunking.MaxTotalChunks == 0 {
		cfg.Chunking.MaxTotalChunks = 450_000
	}
}

// GetRepository looks up a configured repository by name.
func (c *Config) GetRepository(name string) (*Repository, error) {
	for i := range c.Source.Repositories {
		if c.Source.Repositories[i].Name == name {
			return &c.Source.Repositories[i], nil
		}
	}
	return nil, fmt.Errorf("repository not found: %s", name)
}

// validateRepositories checks each repository's Path is set and its Include
// patterns compile as globs (gobwas/glob; display/validation only, per
// DESIGN.md — the ignore-matching engine spec §9 mandates is hand-rolled).
func validateRepositories(cfg *Config) error {
	for _, repo := range cfg.Source.Repositories {
		if repo.Path == "" {
			return fmt.Errorf("repository '%s': path is required", repo.Name)
		}
		for _, pattern := range repo.Include {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				return fmt.Errorf("repository '%s': invalid include pattern %q: %w", repo.Name, pattern, err)
			}
		}
	}
	return nil
}

var (
	bracedVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)
	bareVarPattern   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars resolves ${VAR}, ${VAR:-default}, and $VAR references
// against the process environment before YAML parsing. A bare $VAR with no
// environment value is left untouched (no default form exists for it).
func expandEnvVars(s string) string {
	s = bracedVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := bracedVarPattern.FindStringSubmatch(match)
		name, hasDefault, def := groups[1], groups[2] != "", groups[3]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if hasDefault {
			return def
		}
		return ""
	})
	s = bareVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1:]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
	return s
}
