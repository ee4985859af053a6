// Package config carga la configuración del servidor mock: YAML con defaults,
// overrides por variables de entorno y validación.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Env         string `yaml:"app_env"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		MetricsAddr     string `yaml:"metrics_addr"` // vacío = /metrics en el mismo listener
	} `yaml:"server"`

	JWS struct {
		Algorithm         string   `yaml:"algorithm"`
		KeyID             string   `yaml:"key_id"`
		KeyValidity       string   `yaml:"key_validity"` // vacío = sin vencimiento
		Bootstrap         bool     `yaml:"bootstrap"`    // generar clave si el store no tiene activa
		MediaType         string   `yaml:"media_type"`
		ProtectedPrefixes []string `yaml:"protected_prefixes"`
		ExcludedPrefixes  []string `yaml:"excluded_prefixes"`
		Patterns          []string `yaml:"patterns"`
		Methods           []string `yaml:"methods"`
	} `yaml:"jws"`

	Keys struct {
		Source   string `yaml:"source"` // memory | fs | pg | redis
		CacheTTL string `yaml:"cache_ttl"`
		FS       struct {
			Dir string `yaml:"dir"`
		} `yaml:"fs"`
		Postgres struct {
			DSN         string `yaml:"dsn"`
			AutoMigrate bool   `yaml:"auto_migrate"` // aplicar migrations/postgres/keys al arrancar
		} `yaml:"postgres"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"keys"`
}

// Load lee path (si no está vacío), aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.ServiceName == "" {
		c.App.ServiceName = "ofbmock"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "15s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	// mismos valores que el servidor original: PS256 con kid fijo
	if c.JWS.Algorithm == "" {
		c.JWS.Algorithm = "PS256"
	}
	if c.JWS.KeyID == "" {
		c.JWS.KeyID = "ofb-jws-key-1"
	}
	if c.JWS.MediaType == "" {
		c.JWS.MediaType = "application/jose"
	}
	if c.Keys.Source == "" {
		c.Keys.Source = "memory"
	}
	if c.Keys.CacheTTL == "" {
		c.Keys.CacheTTL = "30s"
	}
	if c.Keys.FS.Dir == "" {
		c.Keys.FS.Dir = "./data/keys"
	}
	if c.Keys.Redis.Prefix == "" {
		c.Keys.Redis.Prefix = "ofbmock"
	}
}

// applyEnvOverrides pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("METRICS_ADDR"); ok {
		c.Server.MetricsAddr = v
	}

	// JWS
	if v, ok := getEnvStr("JWS_ALGORITHM"); ok {
		c.JWS.Algorithm = v
	}
	if v, ok := getEnvStr("JWS_KEY_ID"); ok {
		c.JWS.KeyID = v
	}
	if v, ok := getEnvStr("JWS_KEY_VALIDITY"); ok {
		c.JWS.KeyValidity = v
	}
	if v, ok := getEnvBool("JWS_BOOTSTRAP"); ok {
		c.JWS.Bootstrap = v
	}
	if v, ok := getEnvStr("JWS_MEDIA_TYPE"); ok {
		c.JWS.MediaType = v
	}
	if v, ok := getEnvCSV("JWS_PROTECTED_PREFIXES"); ok {
		c.JWS.ProtectedPrefixes = v
	}
	if v, ok := getEnvCSV("JWS_EXCLUDED_PREFIXES"); ok {
		c.JWS.ExcludedPrefixes = v
	}

	// KEYS
	if v, ok := getEnvStr("KEYS_SOURCE"); ok {
		c.Keys.Source = strings.ToLower(v)
	}
	if v, ok := getEnvStr("KEYS_CACHE_TTL"); ok {
		c.Keys.CacheTTL = v
	}
	if v, ok := getEnvStr("KEYS_FS_DIR"); ok {
		c.Keys.FS.Dir = v
	}
	if v, ok := getEnvStr("KEYS_PG_DSN"); ok {
		c.Keys.Postgres.DSN = v
	}
	if v, ok := getEnvBool("KEYS_PG_AUTO_MIGRATE"); ok {
		c.Keys.Postgres.AutoMigrate = v
	}
	if v, ok := getEnvStr("KEYS_REDIS_ADDR"); ok {
		c.Keys.Redis.Addr = v
	}
	if v, ok := getEnvStr("KEYS_REDIS_PASSWORD"); ok {
		c.Keys.Redis.Password = v
	}
	if v, ok := getEnvInt("KEYS_REDIS_DB"); ok {
		c.Keys.Redis.DB = v
	}
}

// Validate revisa combinaciones y duraciones.
func (c *Config) Validate() error {
	var errs []error

	for name, v := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"keys.cache_ttl":          c.Keys.CacheTTL,
		"jws.key_validity":        c.JWS.KeyValidity,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	switch c.Keys.Source {
	case "memory":
	case "fs":
		if strings.TrimSpace(c.Keys.FS.Dir) == "" {
			errs = append(errs, errors.New("keys.fs.dir is required for source fs"))
		}
	case "pg":
		if strings.TrimSpace(c.Keys.Postgres.DSN) == "" {
			errs = append(errs, errors.New("keys.postgres.dsn is required for source pg"))
		}
	case "redis":
		if strings.TrimSpace(c.Keys.Redis.Addr) == "" {
			errs = append(errs, errors.New("keys.redis.addr is required for source redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("keys.source: unknown %q (memory|fs|pg|redis)", c.Keys.Source))
	}

	if strings.EqualFold(c.JWS.Algorithm, "none") || strings.HasPrefix(strings.ToUpper(c.JWS.Algorithm), "HS") {
		errs = append(errs, fmt.Errorf("jws.algorithm: %q is not an asymmetric algorithm", c.JWS.Algorithm))
	}
	if !strings.Contains(c.JWS.MediaType, "/") {
		errs = append(errs, fmt.Errorf("jws.media_type: invalid %q", c.JWS.MediaType))
	}

	return errors.Join(errs...)
}

// Duration parsea un campo ya validado; vacío devuelve 0.
func Duration(v string) time.Duration {
	d, _ := time.ParseDuration(v)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}
