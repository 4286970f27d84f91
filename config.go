package main

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything tunable at deployment time.
type Config struct {
	Addr       string `mapstructure:"addr"`
	DBPath     string `mapstructure:"db_path"`
	CatalogDir string `mapstructure:"catalog_dir"`
	LogLevel   string `mapstructure:"log_level"`
	LogPretty  bool   `mapstructure:"log_pretty"`
}

// LoadConfig reads config.yaml from the working directory (if present)
// and environment variables prefixed TANKS_, on top of the defaults.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "tanks.db")
	v.SetDefault("catalog_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TANKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
