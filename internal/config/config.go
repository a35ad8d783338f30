package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	WhatsAppToken string        `envconfig:"WHATSAPP_TOKEN" required:"true"`
	PhoneNumberID string        `envconfig:"WHATSAPP_PHONE_NUMBER_ID" required:"true"`
	VerifyToken   string        `envconfig:"WHATSAPP_VERIFY_TOKEN" required:"true"`
	GraphAPIURL   string        `envconfig:"GRAPH_API_URL" default:"https://graph.facebook.com/v22.0"`
	DBPath        string        `envconfig:"DB_PATH" default:"./data/banquea.db"`
	Timezone      string        `envconfig:"TZ_NAME" default:"America/Lima"`
	HTTPAddr      string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	TickInterval  time.Duration `envconfig:"TICK_INTERVAL" default:"1m"`
	SendTimeout   time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	SeedQuestions bool          `envconfig:"SEED_QUESTIONS" default:"true"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
