package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// ConsoleConfig carries the target console's protocol bounds. Mix and scene
// counts vary by model.
type ConsoleConfig struct {
	MaxChannels int     `yaml:"max_channels"`
	MaxMixes    int     `yaml:"max_mixes"`
	MaxScenes   int     `yaml:"max_scenes"`
	MaxDCAs     int     `yaml:"max_dcas"`
	MinDB       float64 `yaml:"min_db"`
	MaxDB       float64 `yaml:"max_db"`
}

type InterpreterConfig struct {
	AcceptThreshold  float64  `yaml:"accept_threshold"`
	MuteThreshold    float64  `yaml:"mute_threshold"`
	CategoryPriority []string `yaml:"category_priority"`
}

type LearningConfig struct {
	PromptWindowMS int `yaml:"prompt_window_ms"`
	SettleDelayMS  int `yaml:"settle_delay_ms"`
	MaxQueue       int `yaml:"max_queue"`
}

type DictionaryConfig struct {
	Path              string `yaml:"path"`
	CacheSize         int    `yaml:"cache_size"`
	VacuumOnStart     bool   `yaml:"vacuum_on_start"`
	MinPromotionUsage int    `yaml:"min_promotion_usage"`
}

type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Console     ConsoleConfig     `yaml:"console"`
	Interpreter InterpreterConfig `yaml:"interpreter"`
	Learning    LearningConfig    `yaml:"learning"`
	Dictionary  DictionaryConfig  `yaml:"dictionary"`
	Journal     JournalConfig     `yaml:"journal"`
}

func Default() Config {
	return Config{
		RuntimeName: "mixctl-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Console: ConsoleConfig{
			MaxChannels: 40,
			MaxMixes:    20,
			MaxScenes:   100,
			MaxDCAs:     8,
			MinDB:       -60,
			MaxDB:       10,
		},
		Interpreter: InterpreterConfig{
			AcceptThreshold: 0.5,
			MuteThreshold:   0.6,
		},
		Learning: LearningConfig{
			PromptWindowMS: 3000,
			SettleDelayMS:  500,
			MaxQueue:       8,
		},
		Dictionary: DictionaryConfig{
			Path:              "./data/mixctl-dictionary.db",
			CacheSize:         256,
			MinPromotionUsage: 3,
		},
		Journal: JournalConfig{
			Path:          "./data/mixctl-journal.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "MIXCTL_RUNTIME_NAME")
	overrideString(&cfg.Environment, "MIXCTL_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "MIXCTL_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "MIXCTL_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "MIXCTL_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "MIXCTL_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "MIXCTL_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "MIXCTL_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "MIXCTL_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "MIXCTL_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "MIXCTL_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "MIXCTL_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "MIXCTL_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "MIXCTL_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "MIXCTL_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "MIXCTL_BUS_CONNECT_TIMEOUT_MS")
	overrideInt(&cfg.Console.MaxChannels, "MIXCTL_CONSOLE_MAX_CHANNELS")
	overrideInt(&cfg.Console.MaxMixes, "MIXCTL_CONSOLE_MAX_MIXES")
	overrideInt(&cfg.Console.MaxScenes, "MIXCTL_CONSOLE_MAX_SCENES")
	overrideInt(&cfg.Console.MaxDCAs, "MIXCTL_CONSOLE_MAX_DCAS")
	overrideFloat(&cfg.Console.MinDB, "MIXCTL_CONSOLE_MIN_DB")
	overrideFloat(&cfg.Console.MaxDB, "MIXCTL_CONSOLE_MAX_DB")
	overrideFloat(&cfg.Interpreter.AcceptThreshold, "MIXCTL_INTERPRETER_ACCEPT_THRESHOLD")
	overrideFloat(&cfg.Interpreter.MuteThreshold, "MIXCTL_INTERPRETER_MUTE_THRESHOLD")
	overrideStringSlice(&cfg.Interpreter.CategoryPriority, "MIXCTL_INTERPRETER_CATEGORY_PRIORITY")
	overrideInt(&cfg.Learning.PromptWindowMS, "MIXCTL_LEARNING_PROMPT_WINDOW_MS")
	overrideInt(&cfg.Learning.SettleDelayMS, "MIXCTL_LEARNING_SETTLE_DELAY_MS")
	overrideInt(&cfg.Learning.MaxQueue, "MIXCTL_LEARNING_MAX_QUEUE")
	overrideString(&cfg.Dictionary.Path, "MIXCTL_DICTIONARY_PATH")
	overrideInt(&cfg.Dictionary.CacheSize, "MIXCTL_DICTIONARY_CACHE_SIZE")
	overrideBool(&cfg.Dictionary.VacuumOnStart, "MIXCTL_DICTIONARY_VACUUM_ON_START")
	overrideInt(&cfg.Dictionary.MinPromotionUsage, "MIXCTL_DICTIONARY_MIN_PROMOTION_USAGE")
	overrideString(&cfg.Journal.Path, "MIXCTL_JOURNAL_PATH")
	overrideString(&cfg.Journal.RetentionMode, "MIXCTL_JOURNAL_RETENTION_MODE")
	overrideInt(&cfg.Journal.RetentionDays, "MIXCTL_JOURNAL_RETENTION_DAYS")
	overrideInt(&cfg.Journal.MaxSessions, "MIXCTL_JOURNAL_MAX_SESSIONS")
	overrideBool(&cfg.Journal.VacuumOnStart, "MIXCTL_JOURNAL_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Console.MaxChannels <= 0 {
		return errors.New("console.max_channels must be positive")
	}
	if cfg.Console.MaxMixes <= 0 {
		return errors.New("console.max_mixes must be positive")
	}
	if cfg.Console.MaxScenes <= 0 {
		return errors.New("console.max_scenes must be positive")
	}
	if cfg.Console.MaxDCAs <= 0 {
		return errors.New("console.max_dcas must be positive")
	}
	if cfg.Console.MinDB >= cfg.Console.MaxDB {
		return errors.New("console.min_db must be below console.max_db")
	}
	if cfg.Interpreter.AcceptThreshold < 0 || cfg.Interpreter.AcceptThreshold > 1 {
		return errors.New("interpreter.accept_threshold must be within [0, 1]")
	}
	if cfg.Interpreter.MuteThreshold < cfg.Interpreter.AcceptThreshold || cfg.Interpreter.MuteThreshold > 1 {
		return errors.New("interpreter.mute_threshold must be within [accept_threshold, 1]")
	}
	if cfg.Learning.PromptWindowMS <= 0 {
		return errors.New("learning.prompt_window_ms must be positive")
	}
	if cfg.Learning.SettleDelayMS < 0 {
		return errors.New("learning.settle_delay_ms must be >= 0")
	}
	if cfg.Learning.MaxQueue <= 0 {
		return errors.New("learning.max_queue must be >= 1")
	}
	if cfg.Dictionary.Path == "" {
		return errors.New("dictionary.path must not be empty")
	}
	if cfg.Dictionary.MinPromotionUsage < 1 {
		return errors.New("dictionary.min_promotion_usage must be >= 1")
	}
	if cfg.Journal.Path == "" {
		return errors.New("journal.path must not be empty")
	}
	switch cfg.Journal.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("journal.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
