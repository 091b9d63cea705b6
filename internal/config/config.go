package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	HTTPAddr    string
	DBPath      string
	RabbitURL   string
	Exchange    string
	SeedOnStart bool
	// Umbral para publicar stock.low
	LowStockThreshold int64
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func Load() Config {
	// .env es opcional, igual que en desarrollo local
	_ = godotenv.Load()

	return Config{
		ServiceName:       getenv("LIBRERIA_SERVICE_NAME", "libreria"),
		HTTPAddr:          getenv("LIBRERIA_HTTP_ADDR", ":8080"),
		DBPath:            getenv("LIBRERIA_DB_PATH", "libreria.db"),
		RabbitURL:         getenv("RABBITMQ_URL", ""),
		Exchange:          getenv("LIBRERIA_EXCHANGE", "libreria.events"),
		SeedOnStart:       getenv("LIBRERIA_SEED", "false") == "true",
		LowStockThreshold: getenvInt("LIBRERIA_LOW_STOCK", 3),
	}
}

const ShutdownGrace = 10 * time.Second
