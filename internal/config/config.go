package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/corpusrank/internal/chunk"
	"github.com/Aman-CERP/corpusrank/internal/corpus"
	"github.com/Aman-CERP/corpusrank/internal/embed"
	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
	"github.com/Aman-CERP/corpusrank/internal/lexical"
	"github.com/Aman-CERP/corpusrank/internal/rank"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

// ProjectFileNames are the project config files, in lookup order.
var ProjectFileNames = []string{".corpusrank.yaml", ".corpusrank.yml"}

// EnvFileName is the dotenv file read from the project directory.
const EnvFileName = ".env"

// DefaultDataDirName is the index directory created under the corpus root.
const DefaultDataDirName = ".corpusrank"

// Config represents the complete corpusrank configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Ranking    RankingConfig    `yaml:"ranking" json:"ranking"`
	Coverage   CoverageConfig   `yaml:"coverage" json:"coverage"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Indexing   IndexingConfig   `yaml:"indexing" json:"indexing"`
}

// PathsConfig locates the corpus and the index.
type PathsConfig struct {
	// CorpusRoot is the directory walked by the indexer. Relative paths
	// resolve against the directory passed to Load.
	CorpusRoot string `yaml:"corpus_root" json:"corpus_root"`
	// DataDir holds the vector store, catalog and lock file.
	DataDir    string   `yaml:"data_dir" json:"data_dir"`
	Extensions []string `yaml:"extensions" json:"extensions"`
	Exclude    []string `yaml:"exclude" json:"exclude"`
}

// ChunkingConfig selects the chunking strategy and its sizes (in characters).
type ChunkingConfig struct {
	Strategy          string `yaml:"strategy" json:"strategy"`
	ChunkSize         int    `yaml:"chunk_size" json:"chunk_size"`
	Overlap           int    `yaml:"overlap" json:"overlap"`
	MaxChunkSize      int    `yaml:"max_chunk_size" json:"max_chunk_size"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk" json:"sentences_per_chunk"`
}

// RankingConfig configures the ranking engine and default query weights.
type RankingConfig struct {
	RecencyDecay        float64            `yaml:"recency_decay" json:"recency_decay"`
	RecencyMode         string             `yaml:"recency_mode" json:"recency_mode"`
	NeutralRecency      float64            `yaml:"neutral_recency" json:"neutral_recency"`
	RecencyWeight       float64            `yaml:"recency_weight" json:"recency_weight"`
	QualityWeight       float64            `yaml:"quality_weight" json:"quality_weight"`
	SemanticWeight      float64            `yaml:"semantic_weight" json:"semantic_weight"`
	BM25Weight          float64            `yaml:"bm25_weight" json:"bm25_weight"`
	CandidateMultiplier int                `yaml:"candidate_multiplier" json:"candidate_multiplier"`
	Quality             map[string]float64 `yaml:"quality" json:"quality"`
}

// CoverageConfig holds the topic-coverage constants.
type CoverageConfig struct {
	TopK               int     `yaml:"top_k" json:"top_k"`
	BestWeight         float64 `yaml:"best_weight" json:"best_weight"`
	AvgWeight          float64 `yaml:"avg_weight" json:"avg_weight"`
	GoodMatchThreshold float64 `yaml:"good_match_threshold" json:"good_match_threshold"`
	TargetCount        int     `yaml:"target_count" json:"target_count"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static" or "ollama".
	Provider   string        `yaml:"provider" json:"provider"`
	Model      string        `yaml:"model" json:"model"`
	Host       string        `yaml:"host" json:"host"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	// CacheSize is the query embedding LRU size. Negative disables it.
	CacheSize  int `yaml:"cache_size" json:"cache_size"`
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// FallbackToStatic uses the static embedder when Ollama is unreachable.
	FallbackToStatic bool `yaml:"fallback_to_static" json:"fallback_to_static"`
}

// StoreConfig selects the vector and lexical backends.
type StoreConfig struct {
	Backend  string `yaml:"backend" json:"backend"`
	Lexical  string `yaml:"lexical" json:"lexical"`
	Compress bool   `yaml:"compress" json:"compress"`
}

// ServerConfig configures logging and the MCP server.
type ServerConfig struct {
	LogLevel  string `yaml:"log_level" json:"log_level"`
	Transport string `yaml:"transport" json:"transport"`
}

// IndexingConfig tunes the indexing pipeline and the watcher.
type IndexingConfig struct {
	Workers       int           `yaml:"workers" json:"workers"`
	WatchDebounce time.Duration `yaml:"watch_debounce" json:"watch_debounce"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	chunkDefaults := chunk.DefaultOptions()
	recency := rank.DefaultRecencyConfig()
	coverage := rank.DefaultCoverageConfig()

	quality := make(map[string]float64)
	for tier, m := range rank.DefaultQualityConfig() {
		quality[tier.String()] = m
	}

	return &Config{
		Version: 1,
		Paths: PathsConfig{
			CorpusRoot: ".",
			DataDir:    DefaultDataDirName,
			Extensions: append([]string(nil), corpus.DefaultExtensions...),
			Exclude:    append([]string(nil), corpus.DefaultExclude...),
		},
		Chunking: ChunkingConfig{
			Strategy:          string(chunk.StrategyParagraph),
			ChunkSize:         chunkDefaults.ChunkSize,
			Overlap:           chunkDefaults.Overlap,
			MaxChunkSize:      chunkDefaults.MaxChunkSize,
			SentencesPerChunk: chunkDefaults.SentencesPerChunk,
		},
		Ranking: RankingConfig{
			RecencyDecay:        recency.Decay,
			RecencyMode:         string(recency.Mode),
			NeutralRecency:      recency.Neutral,
			RecencyWeight:       0.2,
			QualityWeight:       0.1,
			SemanticWeight:      0.7,
			BM25Weight:          0.3,
			CandidateMultiplier: 3,
			Quality:             quality,
		},
		Coverage: CoverageConfig{
			TopK:               coverage.TopK,
			BestWeight:         coverage.BestWeight,
			AvgWeight:          coverage.AvgWeight,
			GoodMatchThreshold: coverage.GoodMatch,
			TargetCount:        coverage.TargetCount,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   embed.ProviderStatic,
			Model:      embed.DefaultOllamaModel,
			Host:       "",
			Dimensions: 0, // static: 256, ollama: probed
			BatchSize:  embed.DefaultBatchSize,
			Timeout:    embed.DefaultTimeout,
			CacheSize:  1000,
			MaxRetries: 3,
		},
		Store: StoreConfig{
			Backend: store.BackendChromem,
			Lexical: lexical.BackendMemory,
		},
		Server: ServerConfig{
			LogLevel:  "info",
			Transport: "stdio",
		},
		Indexing: IndexingConfig{
			Workers:       runtime.NumCPU(),
			WatchDebounce: 500 * time.Millisecond,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory layout:
//   - $XDG_CONFIG_HOME/corpusrank/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/corpusrank/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "corpusrank", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "corpusrank", "config.yaml")
	}
	return filepath.Join(home, ".config", "corpusrank", "config.yaml")
}

// Load loads configuration for the project in dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/corpusrank/config.yaml)
//  3. Project config (.corpusrank.yaml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. Environment variables (CORPUSRANK_*)
//
// Relative paths are resolved against dir and the result is validated.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := ProjectConfigPath(dir); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if envPath := filepath.Join(dir, EnvFileName); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, cerrors.ConfigError(fmt.Sprintf("failed to read %s", envPath), err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the project config file in dir, or "".
// .yaml takes precedence over .yml.
func ProjectConfigPath(dir string) string {
	for _, name := range ProjectFileNames {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p
		}
	}
	return ""
}

// loadYAML decodes path over the current values. Keys absent from the
// file keep their current value; keys present, including zeros, replace it.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cerrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return cerrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// applyEnvOverrides applies CORPUSRANK_* variables. Unparseable numbers are
// ignored with a warning.
func (c *Config) applyEnvOverrides() {
	envString("CORPUSRANK_CORPUS_ROOT", &c.Paths.CorpusRoot)
	envString("CORPUSRANK_DATA_DIR", &c.Paths.DataDir)
	envString("CORPUSRANK_CHUNK_STRATEGY", &c.Chunking.Strategy)

	envFloat("CORPUSRANK_RECENCY_WEIGHT", &c.Ranking.RecencyWeight)
	envFloat("CORPUSRANK_QUALITY_WEIGHT", &c.Ranking.QualityWeight)
	envFloat("CORPUSRANK_SEMANTIC_WEIGHT", &c.Ranking.SemanticWeight)
	envFloat("CORPUSRANK_BM25_WEIGHT", &c.Ranking.BM25Weight)
	envFloat("CORPUSRANK_RECENCY_DECAY", &c.Ranking.RecencyDecay)

	envString("CORPUSRANK_EMBEDDINGS_PROVIDER", &c.Embeddings.Provider)
	envString("CORPUSRANK_EMBEDDINGS_MODEL", &c.Embeddings.Model)
	envString("CORPUSRANK_OLLAMA_HOST", &c.Embeddings.Host)

	envString("CORPUSRANK_STORE_BACKEND", &c.Store.Backend)
	envString("CORPUSRANK_LEXICAL_BACKEND", &c.Store.Lexical)
	envString("CORPUSRANK_LOG_LEVEL", &c.Server.LogLevel)
	envInt("CORPUSRANK_WORKERS", &c.Indexing.Workers)
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envFloat(key string, dst *float64) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring invalid env override", slog.String("key", key), slog.String("value", v))
		return
	}
	*dst = f
}

func envInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid env override", slog.String("key", key), slog.String("value", v))
		return
	}
	*dst = n
}

// resolvePaths makes the corpus root absolute against dir and puts a
// relative data dir under the corpus root.
func (c *Config) resolvePaths(dir string) {
	if !filepath.IsAbs(c.Paths.CorpusRoot) {
		c.Paths.CorpusRoot = filepath.Join(dir, c.Paths.CorpusRoot)
	}
	if abs, err := filepath.Abs(c.Paths.CorpusRoot); err == nil {
		c.Paths.CorpusRoot = abs
	}
	if !filepath.IsAbs(c.Paths.DataDir) {
		c.Paths.DataDir = filepath.Join(c.Paths.CorpusRoot, c.Paths.DataDir)
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	strategy, opts, err := c.ChunkOptions()
	if err != nil {
		return configInvalid(err)
	}
	if err := opts.Validate(strategy); err != nil {
		return configInvalid(err)
	}

	r := c.Ranking
	for name, w := range map[string]float64{
		"recency_weight":  r.RecencyWeight,
		"quality_weight":  r.QualityWeight,
		"semantic_weight": r.SemanticWeight,
		"bm25_weight":     r.BM25Weight,
	} {
		if w < 0 || w > 1 {
			return cerrors.ConfigError(fmt.Sprintf("ranking.%s must be between 0 and 1, got %v", name, w), nil)
		}
	}
	if r.RecencyWeight+r.QualityWeight > 1+1e-9 {
		return cerrors.ConfigError(fmt.Sprintf("ranking.recency_weight + ranking.quality_weight must be <= 1, got %.2f",
			r.RecencyWeight+r.QualityWeight), nil)
	}

	rankCfg, err := c.RankConfig()
	if err != nil {
		return configInvalid(err)
	}
	if err := rankCfg.Validate(); err != nil {
		return configInvalid(err)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case embed.ProviderStatic, embed.ProviderOllama:
	default:
		return cerrors.ConfigError(fmt.Sprintf("embeddings.provider must be 'static' or 'ollama', got %q", c.Embeddings.Provider), nil)
	}
	if c.Embeddings.Dimensions < 0 {
		return cerrors.ConfigError(fmt.Sprintf("embeddings.dimensions must be >= 0, got %d", c.Embeddings.Dimensions), nil)
	}
	if c.Embeddings.MaxRetries < 0 {
		return cerrors.ConfigError(fmt.Sprintf("embeddings.max_retries must be >= 0, got %d", c.Embeddings.MaxRetries), nil)
	}

	switch strings.ToLower(c.Store.Backend) {
	case store.BackendChromem, store.BackendHNSW:
	default:
		return cerrors.ConfigError(fmt.Sprintf("store.backend must be 'chromem' or 'hnsw', got %q", c.Store.Backend), nil)
	}
	switch strings.ToLower(c.Store.Lexical) {
	case lexical.BackendMemory, lexical.BackendBleve:
	default:
		return cerrors.ConfigError(fmt.Sprintf("store.lexical must be 'memory' or 'bleve', got %q", c.Store.Lexical), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return cerrors.ConfigError(fmt.Sprintf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel), nil)
	}
	if !strings.EqualFold(c.Server.Transport, "stdio") {
		return cerrors.ConfigError(fmt.Sprintf("server.transport must be 'stdio', got %s", c.Server.Transport), nil)
	}

	if c.Indexing.Workers < 0 {
		return cerrors.ConfigError(fmt.Sprintf("indexing.workers must be >= 0, got %d", c.Indexing.Workers), nil)
	}
	if c.Indexing.WatchDebounce < 0 {
		return cerrors.ConfigError("indexing.watch_debounce must be >= 0", nil)
	}
	return nil
}

// configInvalid re-codes a validation error from a domain package as a
// config error, keeping the original as cause.
func configInvalid(err error) error {
	msg := err.Error()
	if ce, ok := cerrors.As(err); ok {
		msg = ce.Message
	}
	return cerrors.ConfigError(msg, err)
}

// ChunkOptions converts the chunking section.
func (c *Config) ChunkOptions() (chunk.Strategy, chunk.Options, error) {
	strategy, err := chunk.ParseStrategy(c.Chunking.Strategy)
	if err != nil {
		return "", chunk.Options{}, err
	}
	return strategy, chunk.Options{
		ChunkSize:         c.Chunking.ChunkSize,
		Overlap:           c.Chunking.Overlap,
		MaxChunkSize:      c.Chunking.MaxChunkSize,
		SentencesPerChunk: c.Chunking.SentencesPerChunk,
	}, nil
}

// RankConfig converts the ranking and coverage sections.
func (c *Config) RankConfig() (rank.Config, error) {
	quality, err := rank.ParseQualityConfig(c.Ranking.Quality)
	if err != nil {
		return rank.Config{}, err
	}
	cfg := rank.DefaultConfig()
	cfg.Recency = rank.RecencyConfig{
		Decay:   c.Ranking.RecencyDecay,
		Mode:    rank.RecencyMode(strings.ToLower(c.Ranking.RecencyMode)),
		Neutral: c.Ranking.NeutralRecency,
	}
	cfg.Quality = quality
	cfg.Coverage = rank.CoverageConfig{
		TopK:        c.Coverage.TopK,
		BestWeight:  c.Coverage.BestWeight,
		AvgWeight:   c.Coverage.AvgWeight,
		GoodMatch:   c.Coverage.GoodMatchThreshold,
		TargetCount: c.Coverage.TargetCount,
	}
	cfg.CandidateMultiplier = c.Ranking.CandidateMultiplier
	return cfg, nil
}

// EmbedConfig converts the embeddings section.
func (c *Config) EmbedConfig() embed.Config {
	retry := cerrors.DefaultRetryConfig()
	retry.MaxRetries = c.Embeddings.MaxRetries
	return embed.Config{
		Provider:         strings.ToLower(c.Embeddings.Provider),
		Model:            c.Embeddings.Model,
		Host:             c.Embeddings.Host,
		Dimensions:       c.Embeddings.Dimensions,
		BatchSize:        c.Embeddings.BatchSize,
		Timeout:          c.Embeddings.Timeout,
		CacheSize:        c.Embeddings.CacheSize,
		Retry:            retry,
		FallbackToStatic: c.Embeddings.FallbackToStatic,
	}
}

// StoreConfig converts the store section for an index of dims dimensions.
func (c *Config) StoreConfig(dims int) store.Config {
	return store.Config{
		Backend:    strings.ToLower(c.Store.Backend),
		DataDir:    c.Paths.DataDir,
		Collection: store.DefaultCollection,
		Dimensions: dims,
		Compress:   c.Store.Compress,
	}
}

// CatalogPath is the SQLite catalog file under the data dir.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
