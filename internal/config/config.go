package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores runtime configuration for the avatar chat.
type Config struct {
	HeyGen  HeyGenConfig
	Avatar  AvatarConfig
	Proxy   ProxyConfig
	Logging LoggingConfig
	Tracing TracingConfig
}

type HeyGenConfig struct {
	APIKey     string
	APIBaseURL string
}

type AvatarConfig struct {
	AvatarID           string
	KnowledgeID        string
	Language           string
	Quality            string
	VoiceRate          float64
	VoiceEmotion       string
	DisableIdleTimeout bool
}

type ProxyConfig struct {
	ListenAddr string
	BaseURL    string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type TracingConfig struct {
	Stdout bool
}

const (
	defaultAPIBase     = "https://api.heygen.com"
	defaultAvatarID    = "Ann_Therapist_public"
	defaultKnowledgeID = "b6ad717dc8cd472dafe383e9c793e14c"
	defaultLanguage    = "uk"
	defaultQuality     = "medium"
	defaultEmotion     = "soothing"
	defaultListenAddr  = "127.0.0.1:3000"
)

// Load resolves configuration from .env files, the environment, an optional
// avatarchat.yaml and defaults, in that order of precedence after the
// process environment.
func Load() (Config, error) {
	loadDotEnv(".env.local", ".env")

	v := viper.New()
	v.SetConfigName("avatarchat")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "avatarchat"))
	}
	v.AutomaticEnv()

	v.SetDefault("HEYGEN_API_BASE", defaultAPIBase)
	v.SetDefault("AVATAR_ID", defaultAvatarID)
	v.SetDefault("AVATAR_KNOWLEDGE_ID", defaultKnowledgeID)
	v.SetDefault("AVATAR_LANGUAGE", defaultLanguage)
	v.SetDefault("AVATAR_QUALITY", defaultQuality)
	v.SetDefault("AVATAR_VOICE_RATE", 1.0)
	v.SetDefault("AVATAR_VOICE_EMOTION", defaultEmotion)
	v.SetDefault("AVATAR_DISABLE_IDLE_TIMEOUT", false)
	v.SetDefault("PROXY_LISTEN_ADDR", defaultListenAddr)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("TRACE_STDOUT", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	cfg := Config{
		HeyGen: HeyGenConfig{
			APIKey:     strings.TrimSpace(v.GetString("HEYGEN_API_KEY")),
			APIBaseURL: stringOrDefault(v, "HEYGEN_API_BASE", defaultAPIBase),
		},
		Avatar: AvatarConfig{
			AvatarID:           stringOrDefault(v, "AVATAR_ID", defaultAvatarID),
			KnowledgeID:        stringOrDefault(v, "AVATAR_KNOWLEDGE_ID", defaultKnowledgeID),
			Language:           stringOrDefault(v, "AVATAR_LANGUAGE", defaultLanguage),
			Quality:            strings.ToLower(stringOrDefault(v, "AVATAR_QUALITY", defaultQuality)),
			VoiceRate:          v.GetFloat64("AVATAR_VOICE_RATE"),
			VoiceEmotion:       strings.ToLower(stringOrDefault(v, "AVATAR_VOICE_EMOTION", defaultEmotion)),
			DisableIdleTimeout: boolOrDefault(v, "AVATAR_DISABLE_IDLE_TIMEOUT", false),
		},
		Proxy: ProxyConfig{
			ListenAddr: stringOrDefault(v, "PROXY_LISTEN_ADDR", defaultListenAddr),
			BaseURL:    strings.TrimRight(strings.TrimSpace(v.GetString("PROXY_BASE_URL")), "/"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(stringOrDefault(v, "LOG_LEVEL", "info")),
			Format: strings.ToLower(stringOrDefault(v, "LOG_FORMAT", "console")),
		},
		Tracing: TracingConfig{
			Stdout: boolOrDefault(v, "TRACE_STDOUT", false),
		},
	}

	if cfg.Avatar.VoiceRate <= 0 || cfg.Avatar.VoiceRate > 1.5 {
		cfg.Avatar.VoiceRate = 1
	}
	switch cfg.Avatar.Quality {
	case "low", "medium", "high":
	default:
		cfg.Avatar.Quality = defaultQuality
	}
	switch cfg.Avatar.VoiceEmotion {
	case "excited", "serious", "friendly", "soothing", "broadcaster":
	default:
		cfg.Avatar.VoiceEmotion = defaultEmotion
	}
	if cfg.Proxy.BaseURL == "" {
		cfg.Proxy.BaseURL = baseURLFromAddr(cfg.Proxy.ListenAddr)
	}

	return cfg, nil
}

// loadDotEnv never overrides variables already present in the environment.
func loadDotEnv(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

func stringOrDefault(v *viper.Viper, key string, fallback string) string {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return fallback
	}
	return value
}

func boolOrDefault(v *viper.Viper, key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(v.GetString(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func baseURLFromAddr(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host
}
