package config

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

const (
	flagConfig         = "config"
	flagEnvFile        = "env-file"
	flagBaseURL        = "ragflow-base-url"
	flagAPIKey         = "ragflow-api-key"
	flagRequestTimeout = "request-timeout"
	flagCacheTTL       = "cache-ttl"
	flagSearchTimeout  = "search-timeout"
	flagTransport      = "transport"
	flagAddr           = "addr"
	flagMetricsAddr    = "metrics-addr"
	flagLogLevel       = "log-level"
	flagLogFormat      = "log-format"
)

// RegisterFlags defines the configuration flags on fs. Defaults shown in help
// come from Default(); a flag only takes effect when the user sets it.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(flagConfig, "", "path to a TOML config file (default "+DefaultPath+" if present)")
	fs.String(flagEnvFile, "", "path to a dotenv file (default "+DefaultEnvFile+" if present)")
	fs.String(flagBaseURL, "", "RAGFlow backend base URL, e.g. http://ragflow:9380 [RAGFLOW_BASE_URL]")
	fs.String(flagAPIKey, "", "RAGFlow API key [RAGFLOW_API_KEY]")
	fs.Duration(flagRequestTimeout, d.RAGFlow.RequestTimeout, "timeout for one backend request")
	fs.Duration(flagCacheTTL, d.Cache.TTL, "how long resolved metadata stays cached")
	fs.Duration(flagSearchTimeout, d.Retrieval.Timeout, "deadline for one whole search including enrichment")
	fs.String(flagTransport, d.Server.Transport, "tool transport: stdio or http")
	fs.String(flagAddr, d.Server.Addr, "listen address for the http transport")
	fs.String(flagMetricsAddr, "", "listen address for /metrics in stdio mode (disabled when empty)")
	fs.String(flagLogLevel, d.Log.Level, "log level: debug, info, warn, error")
	fs.String(flagLogFormat, d.Log.Format, "log format: text or json")
}

func (c *Config) applyFlags(fs *pflag.FlagSet) error {
	str := func(name string, dst *string) error {
		if !fs.Changed(name) {
			return nil
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
	dur := func(name string, dst *time.Duration) error {
		if !fs.Changed(name) {
			return nil
		}
		v, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	return errors.Join(
		str(flagBaseURL, &c.RAGFlow.BaseURL),
		str(flagAPIKey, &c.RAGFlow.APIKey),
		dur(flagRequestTimeout, &c.RAGFlow.RequestTimeout),
		dur(flagCacheTTL, &c.Cache.TTL),
		dur(flagSearchTimeout, &c.Retrieval.Timeout),
		str(flagTransport, &c.Server.Transport),
		str(flagAddr, &c.Server.Addr),
		str(flagMetricsAddr, &c.Server.MetricsAddr),
		str(flagLogLevel, &c.Log.Level),
		str(flagLogFormat, &c.Log.Format),
	)
}
