package config

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rapidaai/demostudio/pkg/configs"
	"github.com/spf13/viper"
)

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`

	// Uploaded chunks are appended under TempStoragePath; finalized
	// artifacts are promoted to RecordingStoragePath. The two may live on
	// different volumes, which is why promotion copies instead of renaming.
	TempStoragePath      string `mapstructure:"temp_storage_path" validate:"required"`
	RecordingStoragePath string `mapstructure:"recording_storage_path" validate:"required"`

	RedisConfig      configs.RedisConfig      `mapstructure:",squash"`
	DatabaseConfig   configs.DatabaseConfig   `mapstructure:",squash"`
	AssetStoreConfig configs.AssetStoreConfig `mapstructure:",squash"`

	DeepgramApiKey string `mapstructure:"deepgram_api_key"`
	GeminiApiKey   string `mapstructure:"gemini_api_key"`

	// Enrichment is bounded by a long overall timeout because speech
	// synthesis retries are nested inside the call.
	EnrichmentTimeoutSeconds int `mapstructure:"enrichment_timeout_seconds" validate:"required"`

	// all the host which is required
	IdentityHost string `mapstructure:"identity_host"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env varaibles.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "demostudio")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 9090)
	v.SetDefault("LOG_LEVEL", "debug")

	v.SetDefault("TEMP_STORAGE_PATH", os.TempDir())
	v.SetDefault("RECORDING_STORAGE_PATH", "recordings")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DATABASE", 0)

	v.SetDefault("DATABASE_PATH", "demostudio.db")

	v.SetDefault("ASSET_STORE_PROVIDER", "local")
	v.SetDefault("ASSET_STORE_BUCKET", "")
	v.SetDefault("ASSET_STORE_REGION", "us-east-1")
	v.SetDefault("ASSET_STORE_PREFIX", "recordings")

	v.SetDefault("DEEPGRAM_API_KEY", "")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("ENRICHMENT_TIMEOUT_SECONDS", 300)

	v.SetDefault("IDENTITY_HOST", "")
}

// GetApplicationConfig unmarshals and validates the loaded configuration.
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
