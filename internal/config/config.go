package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/senbaris/tempdbcheck/internal/logger"
)

// DefaultFileName varsayılan konfigürasyon dosyası adı
const DefaultFileName = "tempdbcheck.yml"

// Config, tempdbcheck için konfigürasyon yapısı
type Config struct {
	// MSSQL Bağlantı Bilgileri
	MSSQL struct {
		Host              string `yaml:"host"`
		User              string `yaml:"user"`
		Pass              string `yaml:"pass"`
		Port              string `yaml:"port"`
		Instance          string `yaml:"instance"`
		Database          string `yaml:"database"`
		Auth              bool   `yaml:"-"` // Auth, dolaylı olarak belirlenir
		TrustCert         bool   `yaml:"trust_cert"`
		WindowsAuth       bool   `yaml:"windows_auth"`
		Encrypt           string `yaml:"encrypt"`
		ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
	} `yaml:"mssql"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	// Rapor geçmişi (sqlite veya postgres)
	History struct {
		Enabled bool   `yaml:"enabled"`
		Driver  string `yaml:"driver"`
		DSN     string `yaml:"dsn"`
	} `yaml:"history"`

	// Servis modu ayarları
	Service struct {
		IntervalSec int `yaml:"interval_sec"`
	} `yaml:"service"`
}

// Default varsayılan ayarlarla bir Config döndürür
func Default() *Config {
	cfg := &Config{}
	cfg.MSSQL.Host = "localhost"
	cfg.MSSQL.Port = "1433"
	cfg.MSSQL.Database = "master"
	cfg.MSSQL.TrustCert = true
	cfg.MSSQL.ConnectTimeoutSec = 10
	cfg.Logging.Level = "WARNING"
	cfg.History.Driver = "sqlite"
	cfg.History.DSN = "tempdbcheck.db"
	cfg.Service.IntervalSec = 3600
	return cfg
}

// Load reads the config at path. An empty path triggers discovery; a
// discovered file that does not exist yields defaults, an explicit one is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = getConfigPath(DefaultFileName)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("konfigürasyon dosyası ayrıştırılamadı: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		logger.Debug("Config file not found, using defaults: %s", path)
	default:
		return nil, fmt.Errorf("konfigürasyon dosyası okunamadı: %w", err)
	}

	applyEnv(cfg)
	cfg.Normalize()
	return cfg, nil
}

// Normalize fills empty fields with defaults and derives Auth.
func (c *Config) Normalize() {
	def := Default()
	if c.MSSQL.Host == "" {
		c.MSSQL.Host = def.MSSQL.Host
	}
	if c.MSSQL.Port == "" && c.MSSQL.Instance == "" {
		c.MSSQL.Port = def.MSSQL.Port
	}
	if c.MSSQL.Database == "" {
		c.MSSQL.Database = def.MSSQL.Database
	}
	if c.MSSQL.ConnectTimeoutSec <= 0 {
		c.MSSQL.ConnectTimeoutSec = def.MSSQL.ConnectTimeoutSec
	}
	if c.History.Driver == "" {
		c.History.Driver = def.History.Driver
	}
	if c.Service.IntervalSec <= 0 {
		c.Service.IntervalSec = def.Service.IntervalSec
	}
	c.MSSQL.Auth = c.MSSQL.User != "" && c.MSSQL.Pass != "" && !c.MSSQL.WindowsAuth
}

func applyEnv(c *Config) {
	if v := os.Getenv("TEMPDBCHECK_MSSQL_HOST"); v != "" {
		c.MSSQL.Host = v
	}
	if v := os.Getenv("TEMPDBCHECK_MSSQL_PORT"); v != "" {
		c.MSSQL.Port = v
	}
	if v := os.Getenv("TEMPDBCHECK_MSSQL_USER"); v != "" {
		c.MSSQL.User = v
	}
	if v := os.Getenv("TEMPDBCHECK_MSSQL_PASS"); v != "" {
		c.MSSQL.Pass = v
	}
	if v := os.Getenv("TEMPDBCHECK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TEMPDBCHECK_HISTORY_DSN"); v != "" {
		c.History.DSN = v
	}
	if v := os.Getenv("TEMPDBCHECK_SERVICE_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Service.IntervalSec = n
		}
	}
}

// WriteDefault varsayılan konfigürasyonu path'e yazar, dosya varsa üzerine yazmaz
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("konfigürasyon dosyası zaten mevcut: %s", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("varsayılan konfigürasyon oluşturulamadı: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("konfigürasyon dizini oluşturulamadı: %w", err)
		}
	}

	// Parola içerebileceği için yalnızca sahibi okuyabilsin
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("konfigürasyon dosyası yazılamadı: %w", err)
	}
	return nil
}

// getConfigPath returns the config file path based on OS.
func getConfigPath(filename string) string {
	// 1. Windows: executable dir
	if runtime.GOOS == "windows" {
		if exePath, err := os.Executable(); err == nil {
			winPath := filepath.Join(filepath.Dir(exePath), filename)
			if _, err := os.Stat(winPath); err == nil {
				logger.Debug("Found config near executable: %s", winPath)
				return winPath
			}
		}
	}

	// 2. Current dir
	if _, err := os.Stat(filename); err == nil {
		return filename
	}

	// 3. Linux fallback
	etcPath := filepath.Join("/etc", "tempdbcheck", filename)
	if _, err := os.Stat(etcPath); err == nil {
		logger.Debug("Found config in: %s", etcPath)
		return etcPath
	}

	return filename
}
