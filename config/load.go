package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// Path is the TOML file. Empty means RAGFLOW_MCP_CONFIG, then
	// DefaultPath (optional).
	Path string
	// EnvFile is the dotenv file. Empty means DefaultEnvFile (optional).
	EnvFile string
	// Flags, when set, must have been registered with RegisterFlags and
	// parsed. Only flags the user set override other sources.
	Flags *pflag.FlagSet
}

// Load builds the configuration from every source and validates it.
func Load(opts LoadOptions) (*Config, error) {
	if opts.Flags != nil {
		if v, err := opts.Flags.GetString(flagConfig); err == nil && opts.Flags.Changed(flagConfig) {
			opts.Path = v
		}
		if v, err := opts.Flags.GetString(flagEnvFile); err == nil && opts.Flags.Changed(flagEnvFile) {
			opts.EnvFile = v
		}
	}

	if err := loadDotEnv(opts.EnvFile); err != nil {
		return nil, err
	}

	cfg := Default()

	path, explicit := opts.Path, opts.Path != ""
	if !explicit {
		if v := strings.TrimSpace(os.Getenv("RAGFLOW_MCP_CONFIG")); v != "" {
			path, explicit = v, true
		} else {
			path = DefaultPath
		}
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if opts.Flags != nil {
		if err := cfg.applyFlags(opts.Flags); err != nil {
			return nil, err
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		// .env is optional.
		_ = godotenv.Load(DefaultEnvFile)
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load env file %q: %w", path, err)
	}
	return nil
}

func (c *Config) loadFile(path string, explicit bool) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v))
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, key, v))
			return
		}
		*dst = d
	}
	flag := func(key string, dst *bool) {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, key, v))
			return
		}
		*dst = b
	}

	str("RAGFLOW_BASE_URL", &c.RAGFlow.BaseURL)
	str("RAGFLOW_API_KEY", &c.RAGFlow.APIKey)
	dur("RAGFLOW_MCP_REQUEST_TIMEOUT", &c.RAGFlow.RequestTimeout)
	dur("RAGFLOW_MCP_CONNECT_TIMEOUT", &c.RAGFlow.ConnectTimeout)
	dur("RAGFLOW_MCP_READ_TIMEOUT", &c.RAGFlow.ReadTimeout)
	num("RAGFLOW_MCP_MAX_IDLE_CONNS", &c.RAGFlow.MaxIdleConns)
	num("RAGFLOW_MCP_MAX_CONNS_PER_HOST", &c.RAGFlow.MaxConnsPerHost)
	num("RAGFLOW_MCP_DOC_PAGE_SIZE", &c.RAGFlow.DocPageSize)

	num("RAGFLOW_MCP_DATASET_CACHE_SIZE", &c.Cache.DatasetCapacity)
	num("RAGFLOW_MCP_DOCUMENT_CACHE_SIZE", &c.Cache.DocumentCapacity)
	dur("RAGFLOW_MCP_CACHE_TTL", &c.Cache.TTL)

	dur("RAGFLOW_MCP_SEARCH_TIMEOUT", &c.Retrieval.Timeout)
	num("RAGFLOW_MCP_SEARCH_CONCURRENCY", &c.Retrieval.Concurrency)

	str("RAGFLOW_MCP_TRANSPORT", &c.Server.Transport)
	str("RAGFLOW_MCP_ADDR", &c.Server.Addr)
	str("RAGFLOW_MCP_METRICS_ADDR", &c.Server.MetricsAddr)

	str("RAGFLOW_MCP_LOG_LEVEL", &c.Log.Level)
	str("RAGFLOW_MCP_LOG_FORMAT", &c.Log.Format)
	flag("RAGFLOW_MCP_LOG_SOURCE", &c.Log.AddSource)

	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
