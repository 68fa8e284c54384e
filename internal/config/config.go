/**
 * @description
 * Configuration management for the billing service. Settings come from
 * environment variables, with defaults for the tick schedule and timezone.
 */
package config

import (
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort         string `mapstructure:"SERVER_PORT"`
	DatabaseURL        string `mapstructure:"DATABASE_URL"`
	InternalAPIKey     string `mapstructure:"INTERNAL_API_KEY"`
	BusinessTimezone   string `mapstructure:"BUSINESS_TIMEZONE"`
	RabbitMQURL        string `mapstructure:"RABBITMQ_URL"`
	EngineTickSchedule string `mapstructure:"ENGINE_TICK_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("BUSINESS_TIMEZONE", "America/Sao_Paulo")
	viper.SetDefault("ENGINE_TICK_SCHEDULE", "0 * * * *") // Hourly, on the hour.
	viper.AutomaticEnv()

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("BUSINESS_TIMEZONE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("ENGINE_TICK_SCHEDULE")

	err = viper.Unmarshal(&config)
	if port := os.Getenv("PORT"); port != "" {
		config.ServerPort = port
	}
	return
}
