package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Server struct {
		Addr                string   `yaml:"addr"`
		Pprof               bool     `yaml:"pprof"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		IdleTimeoutSeconds  int      `yaml:"idle_timeout_seconds"`
		AdminAllowCIDRs     []string `yaml:"admin_allow_cidrs"`
		CORSAllowedOrigins  []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`
	Routing struct {
		MaxHops         int     `yaml:"max_hops"`
		DefaultPriority string  `yaml:"default_priority"`
		MinReliability  float64 `yaml:"min_reliability"`
		MaxAlternatives int     `yaml:"max_alternatives"`
	} `yaml:"routing"`
	Telemetry struct {
		CacheTTLSeconds        int               `yaml:"cache_ttl_seconds"`
		MonitorIntervalSeconds int               `yaml:"monitor_interval_seconds"`
		FetchTimeoutSeconds    int               `yaml:"fetch_timeout_seconds"`
		ConnectRetries         int               `yaml:"connect_retries"`
		RetryCooldownSeconds   int               `yaml:"retry_cooldown_seconds"`
		RequestsPerSecond      float64           `yaml:"requests_per_second"`
		RequestBurst           int               `yaml:"request_burst"`
		BaselineLatencyMs      float64           `yaml:"baseline_latency_ms"`
		Endpoints              map[string]string `yaml:"endpoints"`
	} `yaml:"telemetry"`
}

func defaultConfig() Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Server.Addr = ":8080"
	c.Server.Pprof = false
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Server.IdleTimeoutSeconds = 60
	c.Server.AdminAllowCIDRs = []string{"127.0.0.0/8", "::1/128"}
	c.Server.CORSAllowedOrigins = []string{"*"}
	c.Routing.MaxHops = 3
	c.Routing.DefaultPriority = "balanced"
	c.Routing.MinReliability = 85
	c.Routing.MaxAlternatives = 3
	c.Telemetry.CacheTTLSeconds = 30
	c.Telemetry.MonitorIntervalSeconds = 30
	c.Telemetry.FetchTimeoutSeconds = 3
	c.Telemetry.ConnectRetries = 3
	c.Telemetry.RetryCooldownSeconds = 60
	c.Telemetry.RequestsPerSecond = 10
	c.Telemetry.RequestBurst = 20
	c.Telemetry.BaselineLatencyMs = 250
	c.Telemetry.Endpoints = map[string]string{}
	return c
}

func Load() Config {
	c := defaultConfig()
	if path := os.Getenv("KOROX_CONFIG"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &c)
		}
	}
	if v := os.Getenv("KOROX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KOROX_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("KOROX_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("KOROX_PPROF"); v == "1" || v == "true" {
		c.Server.Pprof = true
	}
	if v := os.Getenv("KOROX_ADMIN_ALLOW_CIDRS"); v != "" {
		c.Server.AdminAllowCIDRs = splitCSV(v)
	}
	if v := os.Getenv("KOROX_CORS_ORIGINS"); v != "" {
		c.Server.CORSAllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("KOROX_MAX_HOPS"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Routing.MaxHops = n
		}
	}
	if v := os.Getenv("KOROX_DEFAULT_PRIORITY"); v != "" {
		c.Routing.DefaultPriority = v
	}
	if v := os.Getenv("KOROX_CACHE_TTL_SECONDS"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Telemetry.CacheTTLSeconds = n
		}
	}
	if v := os.Getenv("KOROX_MONITOR_INTERVAL_SECONDS"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Telemetry.MonitorIntervalSeconds = n
		}
	}
	if v := os.Getenv("KOROX_FETCH_TIMEOUT_SECONDS"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Telemetry.FetchTimeoutSeconds = n
		}
	}
	return c
}

func splitCSV(s string) []string {
	var out []string
	buf := []rune{}
	for _, r := range s {
		if r == ',' {
			if len(buf) > 0 {
				out = append(out, string(buf))
				buf = buf[:0]
			}
			continue
		}
		buf = append(buf, r)
	}
	if len(buf) > 0 {
		out = append(out, string(buf))
	}
	return out
}
