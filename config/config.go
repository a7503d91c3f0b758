/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tomoncle/repohub/database"
	"github.com/tomoncle/repohub/storage"
	"github.com/tomoncle/repohub/utils"
)

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxUploadBytes bounds the multipart body of a file create request.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// LimitsConfig holds the request size caps.
type LimitsConfig struct {
	PaginationMaxLength int64 `yaml:"pagination_max_length"`
	MaxContainerCreate  int   `yaml:"max_container_create"`
	MaxFileCreate       int   `yaml:"max_file_create"`
}

// AuthConfig enables the bearer token gate when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database database.Config `yaml:"database"`
	Limits   LimitsConfig    `yaml:"limits"`
	Storage  storage.Config  `yaml:"storage"`
	Auth     AuthConfig      `yaml:"auth"`
	Log      LogConfig       `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  64 << 20,
		},
		Database: *database.DefaultConfig(),
		Limits: LimitsConfig{
			PaginationMaxLength: 1000,
			MaxContainerCreate:  1,
			MaxFileCreate:       10,
		},
		Storage: storage.Config{Driver: "memory"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path uses the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	database.OverrideFromEnv(&c.Database.ConnectionConfig)
	c.Server.Addr = utils.EnvDefaultString("REPOHUB_ADDR", c.Server.Addr)
	c.Auth.JWTSecret = utils.EnvDefaultString("REPOHUB_JWT_SECRET", c.Auth.JWTSecret)
	c.Log.Level = utils.EnvDefaultString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = utils.EnvDefaultString("CONSOLE_LOG_FORMAT", c.Log.Format)

	c.Storage.Driver = utils.EnvDefaultString("REPOHUB_S3_DRIVER", c.Storage.Driver)
	c.Storage.Bucket = utils.EnvDefaultString("REPOHUB_S3_BUCKET", c.Storage.Bucket)
	c.Storage.Region = utils.EnvDefaultString("REPOHUB_S3_REGION", c.Storage.Region)
	c.Storage.Endpoint = utils.EnvDefaultString("REPOHUB_S3_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = utils.EnvDefaultString("REPOHUB_S3_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = utils.EnvDefaultString("REPOHUB_S3_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.UsePathStyle = utils.EnvDefaultBool("REPOHUB_S3_USE_PATH_STYLE", c.Storage.UsePathStyle)
	c.Storage.Prefix = utils.EnvDefaultString("REPOHUB_S3_PREFIX", c.Storage.Prefix)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Limits.PaginationMaxLength <= 0 {
		errs = append(errs, errors.New("limits.pagination_max_length must be positive"))
	}
	if c.Limits.MaxContainerCreate <= 0 || c.Limits.MaxFileCreate <= 0 {
		errs = append(errs, errors.New("limits.max_*_create must be positive"))
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "", "memory":
	case "s3":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if !supportedDatabase(c.Database.ConnectionConfig.Type) {
		errs = append(errs, fmt.Errorf("database.connection.type %q is not supported", c.Database.ConnectionConfig.Type))
	}
	return errors.Join(errs...)
}

func supportedDatabase(t string) bool {
	for _, s := range database.SupportedTypes {
		if strings.EqualFold(s, t) {
			return true
		}
	}
	return false
}
