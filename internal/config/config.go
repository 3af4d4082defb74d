// Package config loads service settings from the environment (and an optional .env
// file) into one typed struct.
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

type Config struct {
	Port        string
	FrontendURL string
	JWTSecret   string

	MongoURI string
	DBName   string

	LLM    LLMConfig
	Search SearchConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
	Policy Policy

	WatchdogSchedule string
	DecaySchedule    string
}

type LLMConfig struct {
	Provider    string // groq | cohere
	GroqAPIKey  string
	GroqModel   string
	BaseURL     string
	CohereKey   string
	CohereModel string
	Timeout     time.Duration
}

type SearchConfig struct {
	APIKey      string
	CX          string
	Endpoint    string
	MaxSnippets int
	Timeout     time.Duration
	RPS         float64
	CacheTTL    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Policy holds the tunable thresholds of translation and validation.
type Policy struct {
	MaxInputRunes           int
	LowConfidenceThreshold  float64
	AutoApproveConfidence   float64
	AutoApproveMinUsage     int
	RejectBelow             float64
	CommunityApproveUpvotes int
	DailySubmissionLimit    int
	ValidationTimeout       time.Duration
	StuckAfter              time.Duration
	MomentumDecay           float64
}

var defaults = map[string]any{
	"PORT":                      "8080",
	"DB_NAME":                   "slang_translator",
	"LLM_PROVIDER":              "groq",
	"GROQ_MODEL":                "llama-3.1-70b-versatile",
	"LLM_BASE_URL":              "https://api.groq.com/openai/v1",
	"COHERE_MODEL":              "command-r",
	"LLM_TIMEOUT":               "15s",
	"SEARCH_MAX_SNIPPETS":       5,
	"SEARCH_TIMEOUT":            "5s",
	"SEARCH_RPS":                1.0,
	"SEARCH_CACHE_TTL":          "6h",
	"REDIS_DB":                  0,
	"KAFKA_TOPIC":               "slang.events",
	"MAX_INPUT_RUNES":           1000,
	"LOW_CONFIDENCE_THRESHOLD":  0.3,
	"AUTO_APPROVE_CONFIDENCE":   0.85,
	"AUTO_APPROVE_MIN_USAGE":    7,
	"REJECT_BELOW":              0.3,
	"COMMUNITY_APPROVE_UPVOTES": 10,
	"DAILY_SUBMISSION_LIMIT":    10,
	"VALIDATION_TIMEOUT":        "30s",
	"STUCK_AFTER":               "10m",
	"MOMENTUM_DECAY":            0.9,
	"WATCHDOG_SCHEDULE":         "@every 1m",
	"DECAY_SCHEDULE":            "@daily",
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found")
	}
	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from v, filling unset keys with defaults.
func FromViper(v *viper.Viper) (*Config, error) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	cfg := &Config{
		Port:        v.GetString("PORT"),
		FrontendURL: v.GetString("FRONTEND_URL"),
		JWTSecret:   v.GetString("JWT_SECRET"),
		MongoURI:    v.GetString("MONGODB_URI"),
		DBName:      v.GetString("DB_NAME"),
		LLM: LLMConfig{
			Provider:    strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER"))),
			GroqAPIKey:  strings.TrimSpace(v.GetString("GROQ_API_KEY")),
			GroqModel:   v.GetString("GROQ_MODEL"),
			BaseURL:     v.GetString("LLM_BASE_URL"),
			CohereKey:   strings.TrimSpace(v.GetString("COHERE_API_KEY")),
			CohereModel: v.GetString("COHERE_MODEL"),
			Timeout:     v.GetDuration("LLM_TIMEOUT"),
		},
		Search: SearchConfig{
			APIKey:      v.GetString("GOOGLE_SEARCH_API_KEY"),
			CX:          v.GetString("GOOGLE_SEARCH_CX"),
			Endpoint:    v.GetString("GOOGLE_SEARCH_ENDPOINT"),
			MaxSnippets: v.GetInt("SEARCH_MAX_SNIPPETS"),
			Timeout:     v.GetDuration("SEARCH_TIMEOUT"),
			RPS:         v.GetFloat64("SEARCH_RPS"),
			CacheTTL:    v.GetDuration("SEARCH_CACHE_TTL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASS"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Policy: Policy{
			MaxInputRunes:           v.GetInt("MAX_INPUT_RUNES"),
			LowConfidenceThreshold:  v.GetFloat64("LOW_CONFIDENCE_THRESHOLD"),
			AutoApproveConfidence:   v.GetFloat64("AUTO_APPROVE_CONFIDENCE"),
			AutoApproveMinUsage:     v.GetInt("AUTO_APPROVE_MIN_USAGE"),
			RejectBelow:             v.GetFloat64("REJECT_BELOW"),
			CommunityApproveUpvotes: v.GetInt("COMMUNITY_APPROVE_UPVOTES"),
			DailySubmissionLimit:    v.GetInt("DAILY_SUBMISSION_LIMIT"),
			ValidationTimeout:       v.GetDuration("VALIDATION_TIMEOUT"),
			StuckAfter:              v.GetDuration("STUCK_AFTER"),
			MomentumDecay:           v.GetFloat64("MOMENTUM_DECAY"),
		},
		WatchdogSchedule: v.GetString("WATCHDOG_SCHEDULE"),
		DecaySchedule:    v.GetString("DECAY_SCHEDULE"),
	}

	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects threshold combinations the decision table cannot honour.
func (p Policy) Validate() error {
	var errs []error
	if p.MaxInputRunes <= 0 {
		errs = append(errs, errors.New("MAX_INPUT_RUNES must be positive"))
	}
	for name, val := range map[string]float64{
		"LOW_CONFIDENCE_THRESHOLD": p.LowConfidenceThreshold,
		"AUTO_APPROVE_CONFIDENCE":  p.AutoApproveConfidence,
		"REJECT_BELOW":             p.RejectBelow,
	} {
		if val < 0 || val > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, val))
		}
	}
	if p.RejectBelow > p.AutoApproveConfidence {
		errs = append(errs, fmt.Errorf("REJECT_BELOW (%v) must not exceed AUTO_APPROVE_CONFIDENCE (%v)", p.RejectBelow, p.AutoApproveConfidence))
	}
	if p.AutoApproveMinUsage < 0 || p.AutoApproveMinUsage > 10 {
		errs = append(errs, fmt.Errorf("AUTO_APPROVE_MIN_USAGE must be within [0,10], got %d", p.AutoApproveMinUsage))
	}
	if p.CommunityApproveUpvotes < 1 {
		errs = append(errs, errors.New("COMMUNITY_APPROVE_UPVOTES must be at least 1"))
	}
	if p.DailySubmissionLimit < 1 {
		errs = append(errs, errors.New("DAILY_SUBMISSION_LIMIT must be at least 1"))
	}
	if p.ValidationTimeout <= 0 || p.StuckAfter <= 0 {
		errs = append(errs, errors.New("VALIDATION_TIMEOUT and STUCK_AFTER must be positive"))
	}
	if p.MomentumDecay <= 0 || p.MomentumDecay > 1 {
		errs = append(errs, fmt.Errorf("MOMENTUM_DECAY must be within (0,1], got %v", p.MomentumDecay))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
