package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTPAddr             string        `koanf:"http_addr" validate:"required"`
	DatabaseURL          string        `koanf:"database_url"`
	CORSOrigins          string        `koanf:"cors_allowed_origins"`
	CORSAllowCredentials bool          `koanf:"cors_allow_credentials"`
	RateLimitRequests    int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow      time.Duration `koanf:"rate_limit_window"`

	JWTSecret string `koanf:"jwt_secret"`

	AppBaseURL string `koanf:"app_base_url" validate:"omitempty,url"`
	Timezone   string `koanf:"timezone" validate:"required"`

	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port" validate:"min=0,max=65535"`
	SMTPUsername string `koanf:"smtp_username"`
	SMTPPassword string `koanf:"smtp_password"`
	SMTPFrom     string `koanf:"smtp_from"`

	AssetsDir     string        `koanf:"assets_dir"`
	FontURL       string        `koanf:"font_url" validate:"omitempty,url"`
	FontTimeout   time.Duration `koanf:"font_timeout"`
	Signatories   string        `koanf:"certificate_signatories"`
	CommunityText string        `koanf:"certificate_community_text"`

	BatchSize           int           `koanf:"job_batch_size" validate:"min=1,max=100"`
	MaxAttempts         int           `koanf:"job_max_attempts" validate:"min=1"`
	EmailDelay          time.Duration `koanf:"email_worker_delay" validate:"min=0"`
	CertificateDelay    time.Duration `koanf:"certificate_worker_delay" validate:"min=0"`
	CertificateThrottle time.Duration `koanf:"certificate_throttle" validate:"min=0"`
	StaleAfter          time.Duration `koanf:"job_stale_after" validate:"min=0"`
	SweepInterval       time.Duration `koanf:"job_sweep_interval"`
	ReminderCron        string        `koanf:"reminder_cron"`

	LogLevel  string `koanf:"log_level" validate:"oneof=trace debug info warn error disabled"`
	LogFormat string `koanf:"log_format" validate:"oneof=json console"`
}

func defaults() Config {
	return Config{
		HTTPAddr:          ":8080",
		RateLimitRequests: 20,
		RateLimitWindow:   time.Minute,

		Timezone: "Asia/Kolkata",
		SMTPPort: 587,

		AssetsDir:     "assets",
		FontURL:       "https://github.com/google/fonts/raw/main/ofl/greatvibes/GreatVibes-Regular.ttf",
		FontTimeout:   10 * time.Second,
		CommunityText: "On behalf of the community",

		BatchSize:           5,
		MaxAttempts:         3,
		EmailDelay:          10 * time.Second,
		CertificateDelay:    15 * time.Second,
		CertificateThrottle: time.Second,
		SweepInterval:       time.Minute,
		ReminderCron:        "0 9 * * *",

		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load layers built-in defaults, an optional .env file and the process
// environment. Environment variable names are the lower-cased koanf keys
// upper-cased, e.g. JOB_BATCH_SIZE.
func Load() (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(env.Provider("", ".", envKey(k)), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey keeps only variables that name a known key.
func envKey(k *koanf.Koanf) func(string) string {
	return func(s string) string {
		key := strings.ToLower(s)
		if !k.Exists(key) {
			return ""
		}
		return key
	}
}

func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// RequireServer checks the settings the HTTP API cannot start without.
func (c Config) RequireServer() error {
	var missing []string
	if strings.TrimSpace(c.DatabaseURL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing env: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) CORSAllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SMTPEnabled reports whether real mail delivery is configured. Without it
// outgoing mail is only logged.
func (c Config) SMTPEnabled() bool {
	return strings.TrimSpace(c.SMTPHost) != ""
}
