package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию клиента.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`

	API struct {
		BaseURL string        `envconfig:"XTRACK_API_URL" default:"http://localhost:8000/api"`
		Timeout time.Duration `envconfig:"XTRACK_API_TIMEOUT" default:"120s"`
	} `envconfig:""`

	// StatePath — путь к локальной базе состояния клиента (токен,
	// идентификатор устройства, счётчик песочницы).
	StatePath string `envconfig:"XTRACK_STATE_PATH" default:"xtrack.db"`

	Watcher struct {
		RefreshInterval time.Duration `envconfig:"WATCHER_REFRESH_INTERVAL" default:"5m"`
		StatusAddr      string        `envconfig:"WATCHER_STATUS_ADDR" default:":8090"`
		MetricsAddr     string        `envconfig:"WATCHER_METRICS_ADDR" default:":9090"`
	} `envconfig:""`

	Playground struct {
		RunLimit int           `envconfig:"PLAYGROUND_RUN_LIMIT" default:"10"`
		Window   time.Duration `envconfig:"PLAYGROUND_WINDOW" default:"24h"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения. Файл .env, если есть, читается первым.
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
