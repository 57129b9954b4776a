// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package configs

import "fmt"

// RedisConfig carries connection settings for the shared Redis instance.
type RedisConfig struct {
	Host     string `mapstructure:"redis_host" validate:"required"`
	Port     int    `mapstructure:"redis_port" validate:"required"`
	Password string `mapstructure:"redis_password"`
	Database int    `mapstructure:"redis_database"`
}

func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// DatabaseConfig carries settings for the embedded metadata database.
type DatabaseConfig struct {
	Path string `mapstructure:"database_path" validate:"required"`
}

// AssetStoreConfig selects where finalized artifacts are promoted to.
// Provider "local" keeps artifacts on disk; "s3" uploads them and hands
// out presigned references.
type AssetStoreConfig struct {
	Provider string `mapstructure:"asset_store_provider" validate:"required,oneof=local s3"`
	Bucket   string `mapstructure:"asset_store_bucket"`
	Region   string `mapstructure:"asset_store_region"`
	Prefix   string `mapstructure:"asset_store_prefix"`
}
