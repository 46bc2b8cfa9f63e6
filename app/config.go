package gabble

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Config struct {
	// Server is the base URL of the Gabble server, e.g. http://localhost:8080.
	// The websocket endpoint and the OAuth entry point are derived from it.
	Server string `validate:"required,url"`
	SQLite struct {
		// File is the path to the local SQLite database holding the
		// stored credentials.
		File string `validate:"required"`
		// Migrations is the path to the directory that the migration files reside.
		Migrations string `validate:"required"`
	}
	// CallbackAddr is the localhost address the OAuth flow redirects back to.
	CallbackAddr string `validate:"required,hostname_port"`
	// ReconnectDelay is how long to wait before redialing after a dropped
	// connection.
	ReconnectDelay time.Duration `validate:"required"`
	// TypingIdle is how long after the last keystroke the typing
	// indicator is withdrawn.
	TypingIdle time.Duration `validate:"required"`
	valid      bool
}

// LoadConfig loads the configuration from the config file and environment
// variables. Any invalid configuration will not be loaded, and the error
// will be caught in the validation step.
func LoadConfig() (*Config, error) {
	// A .env file is optional; environment wins either way.
	_ = godotenv.Load()

	config := &Config{}
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server", "http://localhost:8080")
	viper.SetDefault("sqlite.file", "./gabble.db")
	viper.SetDefault("sqlite.migrations", "./migrations")
	viper.SetDefault("callbackaddr", "127.0.0.1:8910")
	viper.SetDefault("reconnectdelay", "3s")
	viper.SetDefault("typingidle", "1s")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := viper.Unmarshal(&config,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(",")),
		),
	); err != nil {
		// defer error to validation step
		return config, nil
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.valid {
		return nil
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	c.valid = true
	return nil
}
