// Package config загружает настройки сервера и хранилища.
//
// Порядок приоритета: переменные окружения TASKKEEPER_* (в том числе из .env)
// > файл конфигурации (yaml) > значения по умолчанию.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "TASKKEEPER"

// Драйверы хранилища.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Tasks   TasksConfig   `mapstructure:"tasks"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
	DSN    string `mapstructure:"dsn"`
	Key    string `mapstructure:"key"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type TasksConfig struct {
	UpcomingDays int    `mapstructure:"upcoming_days"`
	Location     string `mapstructure:"location"`
}

// TimeLocation разбирает tasks.location ("Local", "UTC", "Europe/Moscow"...).
func (c TasksConfig) TimeLocation() (*time.Location, error) {
	if c.Location == "" || strings.EqualFold(c.Location, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Location)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.dir", "./data")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.key", "@tasks")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", 2*time.Second)
	v.SetDefault("tasks.upcoming_days", 7)
	v.SetDefault("tasks.location", "Local")
}

// Load читает конфигурацию.
//
// path задаёт явный путь к yaml-файлу; если пусто, ищется taskkeeper.yaml
// в текущей директории, а его отсутствие не считается ошибкой.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using system environment variables")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("taskkeeper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverFile:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("config: storage.dsn is required for postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Storage.Key == "" {
		return errors.New("config: storage.key must not be empty")
	}
	if _, err := c.Tasks.TimeLocation(); err != nil {
		return fmt.Errorf("config: tasks.location: %w", err)
	}
	return nil
}
