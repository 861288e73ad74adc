package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	LogLevel   string        `mapstructure:"log_level"`
	// Backpressure is "drop" or "disconnect"; see app.ParsePolicy.
	Backpressure string `mapstructure:"backpressure"`

	CallRate CallRate `mapstructure:"call_rate"`
	Client   Client   `mapstructure:"client"`
}

// CallRate bounds call-user attempts per connection.
type CallRate struct {
	Limit float64 `mapstructure:"limit"`
	Burst int     `mapstructure:"burst"`
}

type Client struct {
	RelayURL     string        `mapstructure:"relay_url"`
	UserID       string        `mapstructure:"user_id"`
	Token        string        `mapstructure:"token"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	RingTimeout  time.Duration `mapstructure:"ring_timeout"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
	ICEServers   []string      `mapstructure:"ice_servers"`
	TrickleICE   bool          `mapstructure:"trickle_ice"`
	CallLog      string        `mapstructure:"call_log"`
}

func Load() (*Config, error) {
	// .env is optional; it only seeds the process environment.
	if err := godotenv.Load(); err == nil {
		log.Info().Str("module", "config").Msg("loaded .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("SONOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", "change-me")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("backpressure", "drop")
	v.SetDefault("call_rate.limit", 1.0)
	v.SetDefault("call_rate.burst", 5)

	v.SetDefault("client.relay_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("client.user_id", "")
	v.SetDefault("client.token", "")
	v.SetDefault("client.dial_timeout", "30s")
	v.SetDefault("client.ring_timeout", "45s")
	v.SetDefault("client.reconnect_min", "1s")
	v.SetDefault("client.reconnect_max", "5s")
	v.SetDefault("client.ice_servers", []string{
		"stun:stun.l.google.com:19302",
		"stun:global.stun.twilio.com:3478",
	})
	v.SetDefault("client.trickle_ice", false)
	v.SetDefault("client.call_log", "./calls.db")
}
