package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Server configuration
	Server struct {
		Port        string   `env:"SERVER_PORT" envDefault:"8280"`
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
		Production  bool     `env:"PRODUCTION" envDefault:"false"`
	}

	Database struct {
		Path string `env:"DATABASE_PATH" envDefault:"database/backoffice.db"`
	}

	Auth struct {
		// HMAC secret for access tokens; the server refuses to start without it
		Secret string `env:"AUTH_SECRET"`

		// Access token lifetime in hours
		AccessTTLHours int `env:"AUTH_ACCESS_TTL_HOURS" envDefault:"10"`

		// Refresh token lifetime in days
		RefreshTTLDays int `env:"AUTH_REFRESH_TTL_DAYS" envDefault:"7"`
	}

	// Import configuration
	Import struct {
		// Maximum number of listings per batch pushed to the queue
		MaxBatchSize int `env:"IMPORT_MAX_BATCH_SIZE" envDefault:"100"`

		// Queue buffer size in batches
		QueueSize int `env:"IMPORT_QUEUE_SIZE" envDefault:"50"`

		// Number of concurrent batch processors
		ProcessorCount int `env:"IMPORT_PROCESSOR_COUNT" envDefault:"2"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"IMPORT_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"IMPORT_RETRY_DELAY" envDefault:"5"`

		// Upload size limit in bytes; larger uploads get a 413
		MaxUploadBytes int64 `env:"IMPORT_MAX_UPLOAD_BYTES" envDefault:"10485760"`
	}

	Geocoding struct {
		Enabled  bool   `env:"GEOCODING_ENABLED" envDefault:"false"`
		Endpoint string `env:"GEOCODING_ENDPOINT" envDefault:"https://nominatim.openstreetmap.org/search"`
	}

	Notify struct {
		TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
		TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`
	}

	Scheduler struct {
		// Local hour of day for the nightly maintenance run
		MaintenanceHour int `env:"SCHEDULER_MAINTENANCE_HOUR" envDefault:"3"`
	}

	Regions struct {
		Path string `env:"REGIONS_PATH" envDefault:"config/regions.json"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
