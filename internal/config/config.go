package config

import "github.com/ilyakaznacheev/cleanenv"

// Config contains runtime configuration required by the service.
type Config struct {
	Port     int    `env:"PORT" env-default:"8080"`
	DBURL    string `env:"DB_URL" env-required:"true"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
