package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/payrollkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept both "1m"
// strings and integer nanoseconds.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	ShutdownTimeout              timex.Duration `json:"shutdown_timeout"`
	DatabaseDSN                  string         `json:"database_dsn"`
	DBMaxOpenConns               int            `json:"db_max_open_conns"`
	DBMaxIdleConns               int            `json:"db_max_idle_conns"`
	TxIsolation                  string         `json:"tx_isolation"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	S3UsePathStyle               bool           `json:"s3_use_path_style"`
	StorageBackend               string         `json:"storage_backend"`
	UploadTempDir                string         `json:"upload_temp_dir"`
	MaxFileSize                  int64          `json:"max_file_size"`
	LogFormat                    string         `json:"log_format"`
	LogLevel                     string         `json:"log_level"`
	BootstrapCompany             string         `json:"bootstrap_company"`
	BootstrapUsername            string         `json:"bootstrap_username"`
	BootstrapPassword            string         `json:"bootstrap_password"`
}

// parseJSON overlays the file named by -c/-config. Keys absent from the
// file keep their current value. Without the flag nothing is loaded.
func parseJSON(cfg *Config, args []string) error {
	path := configPath(args)
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := toJSON(cfg)
	if err := json.Unmarshal(b, &c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.apply(cfg)
	return nil
}

func toJSON(cfg *Config) JsonConfig {
	return JsonConfig{
		HTTPAddr:                     cfg.HTTPAddr,
		ShutdownTimeout:              timex.Duration{Duration: cfg.ShutdownTimeout},
		DatabaseDSN:                  cfg.DatabaseDSN,
		DBMaxOpenConns:               cfg.DBMaxOpenConns,
		DBMaxIdleConns:               cfg.DBMaxIdleConns,
		TxIsolation:                  cfg.TxIsolation,
		SecretKey:                    cfg.SecretKey,
		AccessTokenValidityDuration:  timex.Duration{Duration: cfg.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: cfg.RefreshTokenValidityDuration},
		S3RootUser:                   cfg.S3RootUser,
		S3RootPassword:               cfg.S3RootPassword,
		S3Bucket:                     cfg.S3Bucket,
		S3Region:                     cfg.S3Region,
		S3BaseEndpoint:               cfg.S3BaseEndpoint,
		S3UsePathStyle:               cfg.S3UsePathStyle,
		StorageBackend:               cfg.StorageBackend,
		UploadTempDir:                cfg.UploadTempDir,
		MaxFileSize:                  cfg.MaxFileSize,
		LogFormat:                    cfg.LogFormat,
		LogLevel:                     cfg.LogLevel,
		BootstrapCompany:             cfg.BootstrapCompany,
		BootstrapUsername:            cfg.BootstrapUsername,
		BootstrapPassword:            cfg.BootstrapPassword,
	}
}

func (c JsonConfig) apply(cfg *Config) {
	cfg.HTTPAddr = c.HTTPAddr
	cfg.ShutdownTimeout = c.ShutdownTimeout.Duration
	cfg.DatabaseDSN = c.DatabaseDSN
	cfg.DBMaxOpenConns = c.DBMaxOpenConns
	cfg.DBMaxIdleConns = c.DBMaxIdleConns
	cfg.TxIsolation = c.TxIsolation
	cfg.SecretKey = c.SecretKey
	cfg.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	cfg.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	cfg.S3RootUser = c.S3RootUser
	cfg.S3RootPassword = c.S3RootPassword
	cfg.S3Bucket = c.S3Bucket
	cfg.S3Region = c.S3Region
	cfg.S3BaseEndpoint = c.S3BaseEndpoint
	cfg.S3UsePathStyle = c.S3UsePathStyle
	cfg.StorageBackend = c.StorageBackend
	cfg.UploadTempDir = c.UploadTempDir
	cfg.MaxFileSize = c.MaxFileSize
	cfg.LogFormat = c.LogFormat
	cfg.LogLevel = c.LogLevel
	cfg.BootstrapCompany = c.BootstrapCompany
	cfg.BootstrapUsername = c.BootstrapUsername
	cfg.BootstrapPassword = c.BootstrapPassword
}
