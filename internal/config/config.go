package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // roster dates are computed in a named zone
)

// Backend names accepted by the *_BACKEND settings.
const (
	BackendSQLite    = "sqlite"
	BackendSheets    = "sheets"
	BackendFirestore = "firestore"
	BackendLocal     = "local"
	BackendDrive     = "drive"
)

const (
	ModeWebhook = "webhook"
	ModePolling = "polling"
)

// Config is the whole process configuration, read from CHECKBOT_* variables.
type Config struct {
	Addr      string `env:"CHECKBOT_ADDR"       envDefault:":8080"`
	Commit    string `env:"CHECKBOT_COMMIT"`
	BuildTime string `env:"CHECKBOT_BUILD_TIME"`
	LogLevel  string `env:"CHECKBOT_LOG_LEVEL"  envDefault:"info"`

	Timezone      string        `env:"CHECKBOT_TIMEZONE"       envDefault:"Asia/Kolkata"`
	Slots         []string      `env:"CHECKBOT_SLOTS"          envDefault:"Morning,Mid Day,Closing" envSeparator:","`
	AnswerLabels  []string      `env:"CHECKBOT_ANSWER_LABELS"  envDefault:"Yes,No"                  envSeparator:","`
	StagingDir    string        `env:"CHECKBOT_STAGING_DIR"    envDefault:"data/staging"`
	CallTimeout   time.Duration `env:"CHECKBOT_CALL_TIMEOUT"   envDefault:"20s"`
	SessionTTL    time.Duration `env:"CHECKBOT_SESSION_TTL"    envDefault:"6h"`
	SweepInterval time.Duration `env:"CHECKBOT_SWEEP_INTERVAL" envDefault:"10m"`

	Telegram TelegramConfig

	DirectoryBackend string `env:"CHECKBOT_DIRECTORY_BACKEND" envDefault:"sqlite"`
	EvidenceBackend  string `env:"CHECKBOT_EVIDENCE_BACKEND"  envDefault:"local"`
	SinkBackend      string `env:"CHECKBOT_SINK_BACKEND"      envDefault:"sqlite"`

	SQLitePath    string `env:"CHECKBOT_SQLITE_PATH"    envDefault:"data/checkbot.db"`
	MigrationsDir string `env:"CHECKBOT_MIGRATIONS_DIR"`
	SeedPath      string `env:"CHECKBOT_SEED_PATH"`
	EvidenceDir   string `env:"CHECKBOT_EVIDENCE_DIR"   envDefault:"data/evidence"`

	Google GoogleConfig

	Admin AdminConfig

	OTelEndpoint string `env:"CHECKBOT_OTEL_ENDPOINT"`
	ServiceName  string `env:"CHECKBOT_SERVICE_NAME" envDefault:"checkbot"`
}

type TelegramConfig struct {
	Token         string        `env:"CHECKBOT_TELEGRAM_TOKEN"`
	Mode          string        `env:"CHECKBOT_TELEGRAM_MODE"          envDefault:"webhook"`
	APIEndpoint   string        `env:"CHECKBOT_TELEGRAM_API_ENDPOINT"  envDefault:"https://api.telegram.org/bot%s/%s"`
	FileEndpoint  string        `env:"CHECKBOT_TELEGRAM_FILE_ENDPOINT" envDefault:"https://api.telegram.org/file/bot%s/%s"`
	WebhookURL    string        `env:"CHECKBOT_WEBHOOK_URL"`
	WebhookSecret string        `env:"CHECKBOT_WEBHOOK_SECRET"`
	SendRetries   uint          `env:"CHECKBOT_TELEGRAM_SEND_RETRIES"  envDefault:"3"`
	PollTimeout   int           `env:"CHECKBOT_TELEGRAM_POLL_TIMEOUT"  envDefault:"30"`
	HTTPTimeout   time.Duration `env:"CHECKBOT_TELEGRAM_HTTP_TIMEOUT"  envDefault:"60s"`
	Workers       int           `env:"CHECKBOT_TELEGRAM_WORKERS"       envDefault:"8"`
	QueueDepth    int           `env:"CHECKBOT_TELEGRAM_QUEUE_DEPTH"   envDefault:"64"`
}

type GoogleConfig struct {
	CredentialsFile string `env:"CHECKBOT_GOOGLE_CREDENTIALS"`

	SpreadsheetID       string `env:"CHECKBOT_SHEETS_SPREADSHEET_ID"`
	OutputSpreadsheetID string `env:"CHECKBOT_SHEETS_OUTPUT_ID"`
	EmployeeTab         string `env:"CHECKBOT_SHEETS_EMPLOYEE_TAB"   envDefault:"EmployeeRegister"`
	RosterTab           string `env:"CHECKBOT_SHEETS_ROSTER_TAB"     envDefault:"Roster"`
	ChecklistTab        string `env:"CHECKBOT_SHEETS_CHECKLIST_TAB"  envDefault:"ChecklistQuestions"`
	SubmissionsTab      string `env:"CHECKBOT_SHEETS_SUBMISSION_TAB" envDefault:"ChecklistSubmissions"`
	AnswersTab          string `env:"CHECKBOT_SHEETS_ANSWERS_TAB"    envDefault:"ChecklistAnswers"`

	DriveFolderID string `env:"CHECKBOT_DRIVE_FOLDER_ID"`

	FirestoreProject    string `env:"CHECKBOT_FIRESTORE_PROJECT"`
	FirestoreDatabase   string `env:"CHECKBOT_FIRESTORE_DATABASE"   envDefault:"(default)"`
	FirestoreCollection string `env:"CHECKBOT_FIRESTORE_COLLECTION" envDefault:"submissions"`
}

type AdminConfig struct {
	Username     string        `env:"CHECKBOT_ADMIN_USER"`
	PasswordHash string        `env:"CHECKBOT_ADMIN_PASSWORD_HASH"`
	JWTSecret    string        `env:"CHECKBOT_JWT_SECRET"`
	TokenTTL     time.Duration `env:"CHECKBOT_ADMIN_TOKEN_TTL" envDefault:"12h"`
	CORSOrigins  []string      `env:"CHECKBOT_CORS_ORIGINS"    envSeparator:","`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Slots = trimAll(c.Slots)
	c.AnswerLabels = trimAll(c.AnswerLabels)
	c.DirectoryBackend = strings.ToLower(strings.TrimSpace(c.DirectoryBackend))
	c.EvidenceBackend = strings.ToLower(strings.TrimSpace(c.EvidenceBackend))
	c.SinkBackend = strings.ToLower(strings.TrimSpace(c.SinkBackend))
	c.Telegram.Mode = strings.ToLower(strings.TrimSpace(c.Telegram.Mode))
	if c.Google.OutputSpreadsheetID == "" {
		c.Google.OutputSpreadsheetID = c.Google.SpreadsheetID
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("CHECKBOT_TIMEZONE: %w", err))
	}
	if len(c.Slots) == 0 {
		errs = append(errs, errors.New("CHECKBOT_SLOTS must list at least one slot"))
	}
	if len(c.AnswerLabels) < 2 {
		errs = append(errs, errors.New("CHECKBOT_ANSWER_LABELS must list at least two labels"))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, errors.New("CHECKBOT_CALL_TIMEOUT must be positive"))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("CHECKBOT_SESSION_TTL must not be negative"))
	}

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("CHECKBOT_TELEGRAM_TOKEN is required"))
	}
	switch c.Telegram.Mode {
	case ModeWebhook:
		if c.Telegram.WebhookSecret == "" {
			errs = append(errs, errors.New("CHECKBOT_WEBHOOK_SECRET is required in webhook mode"))
		}
	case ModePolling:
	default:
		errs = append(errs, fmt.Errorf("CHECKBOT_TELEGRAM_MODE %q is not webhook or polling", c.Telegram.Mode))
	}

	needsGoogle := false
	switch c.DirectoryBackend {
	case BackendSQLite:
	case BackendSheets:
		needsGoogle = true
		if c.Google.SpreadsheetID == "" {
			errs = append(errs, errors.New("CHECKBOT_SHEETS_SPREADSHEET_ID is required for the sheets directory"))
		}
	default:
		errs = append(errs, fmt.Errorf("CHECKBOT_DIRECTORY_BACKEND %q is not sqlite or sheets", c.DirectoryBackend))
	}
	switch c.EvidenceBackend {
	case BackendLocal:
		if c.EvidenceDir == "" {
			errs = append(errs, errors.New("CHECKBOT_EVIDENCE_DIR is required for local evidence"))
		}
	case BackendDrive:
		needsGoogle = true
		if c.Google.DriveFolderID == "" {
			errs = append(errs, errors.New("CHECKBOT_DRIVE_FOLDER_ID is required for drive evidence"))
		}
	default:
		errs = append(errs, fmt.Errorf("CHECKBOT_EVIDENCE_BACKEND %q is not local or drive", c.EvidenceBackend))
	}
	switch c.SinkBackend {
	case BackendSQLite:
	case BackendSheets:
		needsGoogle = true
		if c.Google.OutputSpreadsheetID == "" {
			errs = append(errs, errors.New("CHECKBOT_SHEETS_OUTPUT_ID or CHECKBOT_SHEETS_SPREADSHEET_ID is required for the sheets sink"))
		}
	case BackendFirestore:
		if c.Google.FirestoreProject == "" {
			errs = append(errs, errors.New("CHECKBOT_FIRESTORE_PROJECT is required for the firestore sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("CHECKBOT_SINK_BACKEND %q is not sqlite, sheets or firestore", c.SinkBackend))
	}
	if needsGoogle && c.Google.CredentialsFile == "" {
		errs = append(errs, errors.New("CHECKBOT_GOOGLE_CREDENTIALS is required for Google backends"))
	}

	if c.Admin.Username != "" {
		if c.Admin.PasswordHash == "" {
			errs = append(errs, errors.New("CHECKBOT_ADMIN_PASSWORD_HASH is required when CHECKBOT_ADMIN_USER is set"))
		}
		if len(c.Admin.JWTSecret) < 16 {
			errs = append(errs, errors.New("CHECKBOT_JWT_SECRET must be at least 16 characters"))
		}
	}
	return errors.Join(errs...)
}

// UsesSQLite reports whether any component reads or writes the sqlite file.
func (c Config) UsesSQLite() bool {
	return c.DirectoryBackend == BackendSQLite || c.SinkBackend == BackendSQLite
}

// Location loads the configured time zone. Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
