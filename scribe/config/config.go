package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Policy holds the knobs that shape a transcription session's life.
// Defaults mirror the values the service shipped with.
type Policy struct {
	FlushChunkCount          int           `yaml:"flush_chunk_count"`
	FlushInterval            time.Duration `yaml:"flush_interval"`
	MaxTranscriptionFailures int           `yaml:"max_transcription_failures"`
	GracePeriod              time.Duration `yaml:"grace_period"`
	InactivityScanInterval   time.Duration `yaml:"inactivity_scan_interval"`
	CalendarPollInterval     time.Duration `yaml:"calendar_poll_interval"`
	CalendarWindow           time.Duration `yaml:"calendar_window"`
	CompletionTimeout        time.Duration `yaml:"completion_timeout"`
	CompletionAttempts       int           `yaml:"completion_attempts"`
	MinTranscriptChars       int           `yaml:"min_transcript_chars"`
	ActivityThrottle         time.Duration `yaml:"activity_throttle"`
	SubscriberQueue          int           `yaml:"subscriber_queue"`
	ReadLimitBytes           int64         `yaml:"read_limit_bytes"`
	FinalizeTimeout          time.Duration `yaml:"finalize_timeout"`
}

type Config struct {
	HTTPAddr string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	JWTSecret  string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	LLMProvider    string
	OllamaBaseURL  string
	OllamaModel    string
	OpenAIAPIKey   string
	OpenAIModel    string
	GroqAPIKey     string
	GroqModel      string
	GeminiAPIKey   string
	GeminiProject  string
	GeminiLocation string
	GeminiModel    string

	SpeechLanguage   string
	SpeechSampleRate int
	SpeechEncoding   string
	SpeechPhrases    []string

	GoogleClientID     string
	GoogleClientSecret string

	Policy Policy
}

func DefaultPolicy() Policy {
	return Policy{
		FlushChunkCount:          10,
		FlushInterval:            3 * time.Second,
		MaxTranscriptionFailures: 4,
		GracePeriod:              90 * time.Second,
		InactivityScanInterval:   30 * time.Second,
		CalendarPollInterval:     60 * time.Second,
		CalendarWindow:           time.Minute,
		CompletionTimeout:        60 * time.Second,
		CompletionAttempts:       2,
		MinTranscriptChars:       10,
		ActivityThrottle:         time.Second,
		SubscriberQueue:          32,
		ReadLimitBytes:           1 << 20,
		FinalizeTimeout:          3 * time.Minute,
	}
}

func LoadConfig() Config {
	// a missing .env is fine, the environment wins anyway
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:   getEnv("HTTP_ADDR", ":8000"),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", ""),
		DBName:     getEnv("DB_NAME", ""),
		JWTSecret:  getEnv("JWT_SECRET", ""),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "meeting-audio"),
		MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		LLMProvider:    strings.ToLower(getEnv("LLM_PROVIDER", "ollama")),
		OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434/api"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "llama3:8b"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GroqAPIKey:     getEnv("GROQ_API_KEY", ""),
		GroqModel:      getEnv("GROQ_MODEL", "llama-3.1-8b-instant"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiProject:  getEnv("GEMINI_PROJECT", ""),
		GeminiLocation: getEnv("GEMINI_LOCATION", "us-central1"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		SpeechLanguage:   getEnv("SPEECH_LANGUAGE", "en-US"),
		SpeechSampleRate: getEnvInt("SPEECH_SAMPLE_RATE", 16000),
		SpeechEncoding:   getEnv("SPEECH_ENCODING", "linear16"),
		SpeechPhrases:    getEnvList("SPEECH_PHRASES"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		Policy: policyFromEnv(DefaultPolicy()),
	}

	if path := getEnv("SCRIBE_POLICY_FILE", ""); path != "" {
		p, err := LoadPolicyFile(path, cfg.Policy)
		if err != nil {
			// loggers are not initialised yet at this point
			fmt.Fprintln(os.Stderr, "ignoring policy file:", err)
		} else {
			cfg.Policy = p
		}
	}
	return cfg
}

// LoadPolicyFile overlays the YAML document at path onto base. Keys absent
// from the file keep the value from base.
func LoadPolicyFile(path string, base Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read policy file: %w", err)
	}
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return base, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return base, err
	}
	return p, nil
}

func (p Policy) Validate() error {
	switch {
	case p.FlushChunkCount <= 0:
		return fmt.Errorf("flush_chunk_count must be positive")
	case p.FlushInterval <= 0:
		return fmt.Errorf("flush_interval must be positive")
	case p.MaxTranscriptionFailures <= 0:
		return fmt.Errorf("max_transcription_failures must be positive")
	case p.GracePeriod <= 0:
		return fmt.Errorf("grace_period must be positive")
	case p.CompletionAttempts <= 0:
		return fmt.Errorf("completion_attempts must be positive")
	}
	return nil
}

func policyFromEnv(p Policy) Policy {
	p.FlushChunkCount = getEnvInt("SESSION_FLUSH_CHUNKS", p.FlushChunkCount)
	p.FlushInterval = getEnvDuration("SESSION_FLUSH_INTERVAL", p.FlushInterval)
	p.MaxTranscriptionFailures = getEnvInt("SESSION_MAX_FAILURES", p.MaxTranscriptionFailures)
	p.GracePeriod = getEnvDuration("SESSION_GRACE_PERIOD", p.GracePeriod)
	p.InactivityScanInterval = getEnvDuration("INACTIVITY_SCAN_INTERVAL", p.InactivityScanInterval)
	p.CalendarPollInterval = getEnvDuration("CALENDAR_POLL_INTERVAL", p.CalendarPollInterval)
	p.CalendarWindow = getEnvDuration("CALENDAR_WINDOW", p.CalendarWindow)
	p.CompletionTimeout = getEnvDuration("COMPLETION_TIMEOUT", p.CompletionTimeout)
	p.CompletionAttempts = getEnvInt("COMPLETION_ATTEMPTS", p.CompletionAttempts)
	p.MinTranscriptChars = getEnvInt("SUMMARY_MIN_CHARS", p.MinTranscriptChars)
	return p
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
