package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/subosito/gotenv"
	"github/chapool/go-custody/internal/util"
)

type EchoServer struct {
	Debug                     bool
	ListenAddress             string
	BodyLimit                 string
	EnableRecoverMiddleware   bool
	EnableRequestIDMiddleware bool
	EnableLoggerMiddleware    bool
	EnableMetricsMiddleware   bool
}

type LoggerServer struct {
	Level              zerolog.Level
	RequestLevel       zerolog.Level
	PrettyPrintConsole bool
}

type ManagementServer struct {
	Secret                 string `json:"-"`
	ReadinessTimeout       time.Duration
	LivenessTimeout        time.Duration
	ProbeWriteablePathsAbs []string
}

type Mailer struct {
	DefaultSender string
	OpsRecipients []string
	UseSMTP       bool
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string `json:"-"`
}

// Custody groups everything the deposit monitor, sweep orchestrator and key vault need.
type Custody struct {
	AdminToken          string `json:"-"`
	ChainsFile          string
	PollInterval        time.Duration
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	OpenDepositWindow   int
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
	FeeBumpPercent      int64
	RevealWindow        time.Duration
	VaultPassword       string `json:"-"`
	MonitorAutoStart    string
	SweepEnabled        bool
	HTTPClientTimeout   time.Duration
	TronAPIKey          string `json:"-"`
}

type Server struct {
	Database   Database
	Echo       EchoServer
	Management ManagementServer
	Logger     LoggerServer
	Mailer     Mailer
	Custody    Custody
}

// DefaultServiceConfigFromEnv returns the server config as parsed from environment variables
// and their respective defaults defined below.
// We don't expect that ENV_VARs change while we are running our application or our tests
// (and it would be a bad thing to do anyways with parallel testing).
// Do NOT use os.Setenv / os.Unsetenv in tests utilizing DefaultServiceConfigFromEnv()!
func DefaultServiceConfigFromEnv() Server {
	// An `.env.local` file in your project root can override the currently set ENV variables.
	//
	// We never automatically apply `.env.local` when running "go test" as these ENV variables
	// may be sensitive (e.g. secrets to external APIs) and applying them modifies the process-global
	// environment (thus side-effects outside of the test scope).
	if !util.RunningInTest() {
		DotEnvTryLoad(filepath.Join(util.GetProjectRootDir(), ".env.local"), os.Setenv)
	}

	return Server{
		Database: Database{
			Host:     util.GetEnv("PGHOST", "postgres"),
			Port:     util.GetEnvAsInt("PGPORT", 5432),
			Database: util.GetEnv("PGDATABASE", "development"),
			Username: util.GetEnv("PGUSER", "dbuser"),
			Password: util.GetEnv("PGPASSWORD", ""),
			AdditionalParams: map[string]string{
				"sslmode": util.GetEnv("PGSSLMODE", "disable"),
			},
			MaxOpenConns:    util.GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    util.GetEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: util.GetEnvAsInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Echo: EchoServer{
			Debug:                     util.GetEnvAsBool("SERVER_ECHO_DEBUG", false),
			ListenAddress:             util.GetEnv("SERVER_ECHO_LISTEN_ADDRESS", ":8080"),
			BodyLimit:                 util.GetEnv("SERVER_ECHO_BODY_LIMIT", "1M"),
			EnableRecoverMiddleware:   util.GetEnvAsBool("SERVER_ECHO_ENABLE_RECOVER_MIDDLEWARE", true),
			EnableRequestIDMiddleware: util.GetEnvAsBool("SERVER_ECHO_ENABLE_REQUEST_ID_MIDDLEWARE", true),
			EnableLoggerMiddleware:    util.GetEnvAsBool("SERVER_ECHO_ENABLE_LOGGER_MIDDLEWARE", true),
			EnableMetricsMiddleware:   util.GetEnvAsBool("SERVER_ECHO_ENABLE_METRICS_MIDDLEWARE", true),
		},
		Management: ManagementServer{
			Secret:                 util.GetMgmtSecret("SERVER_MANAGEMENT_SECRET"),
			ReadinessTimeout:       util.GetEnvAsDuration("SERVER_MANAGEMENT_READINESS_TIMEOUT", 4*time.Second),
			LivenessTimeout:        util.GetEnvAsDuration("SERVER_MANAGEMENT_LIVENESS_TIMEOUT", 9*time.Second),
			ProbeWriteablePathsAbs: util.GetEnvAsStringArr("SERVER_MANAGEMENT_PROBE_WRITEABLE_PATHS", []string{}),
		},
		Logger: LoggerServer{
			Level:              util.LogLevelFromString(util.GetEnv("SERVER_LOGGER_LEVEL", zerolog.DebugLevel.String())),
			RequestLevel:       util.LogLevelFromString(util.GetEnv("SERVER_LOGGER_REQUEST_LEVEL", zerolog.DebugLevel.String())),
			PrettyPrintConsole: util.GetEnvAsBool("SERVER_LOGGER_PRETTY_PRINT_CONSOLE", false),
		},
		Mailer: Mailer{
			DefaultSender: util.GetEnv("SERVER_MAILER_DEFAULT_SENDER", "custody-noreply@example.com"),
			OpsRecipients: util.GetEnvAsStringArr("SERVER_MAILER_OPS_RECIPIENTS", []string{}),
			UseSMTP:       util.GetEnvAsBool("SERVER_MAILER_USE_SMTP", false),
			SMTPHost:      util.GetEnv("SERVER_SMTP_HOST", "mailhog"),
			SMTPPort:      util.GetEnvAsInt("SERVER_SMTP_PORT", 1025),
			SMTPUsername:  util.GetEnv("SERVER_SMTP_USERNAME", ""),
			SMTPPassword:  util.GetEnv("SERVER_SMTP_PASSWORD", ""),
		},
		Custody: Custody{
			AdminToken:          util.GetEnv("CUSTODY_ADMIN_TOKEN", ""),
			ChainsFile:          util.GetEnv("CUSTODY_CHAINS_FILE", filepath.Join(util.GetProjectRootDir(), "chains.toml")),
			PollInterval:        util.GetEnvAsDuration("CUSTODY_POLL_INTERVAL", 5*time.Second),
			RetryMaxAttempts:    util.GetEnvAsInt("CUSTODY_RETRY_MAX_ATTEMPTS", 5),
			RetryInitialBackoff: util.GetEnvAsDuration("CUSTODY_RETRY_INITIAL_BACKOFF", 500*time.Millisecond),
			RetryMaxBackoff:     util.GetEnvAsDuration("CUSTODY_RETRY_MAX_BACKOFF", 30*time.Second),
			OpenDepositWindow:   util.GetEnvAsInt("CUSTODY_OPEN_WINDOW", 500),
			ReceiptPollInterval: util.GetEnvAsDuration("CUSTODY_RECEIPT_POLL_INTERVAL", 3*time.Second),
			ReceiptTimeout:      util.GetEnvAsDuration("CUSTODY_RECEIPT_TIMEOUT", 2*time.Minute),
			FeeBumpPercent:      int64(util.GetEnvAsInt("CUSTODY_FEE_BUMP_PERCENT", 20)),
			RevealWindow:        util.GetEnvAsDuration("CUSTODY_REVEAL_WINDOW", 30*time.Second),
			VaultPassword:       util.GetEnv("CUSTODY_VAULT_PASSWORD", ""),
			MonitorAutoStart:    util.GetEnvEnum("CUSTODY_MONITOR_AUTOSTART", "", []string{"", "current", "start", "last"}),
			SweepEnabled:        util.GetEnvAsBool("CUSTODY_SWEEP_ENABLED", true),
			HTTPClientTimeout:   util.GetEnvAsDuration("CUSTODY_HTTP_CLIENT_TIMEOUT", 30*time.Second),
			TronAPIKey:          util.GetEnv("CUSTODY_TRON_API_KEY", ""),
		},
	}
}

// DotEnvTryLoad forcefully overrides ENV variables through **a maybe available** .env file.
//
// This function should only be used in case you want to actually override the values of the
// env variables, e.g. through an .env.local file.
func DotEnvTryLoad(absolutePathToEnvFile string, setEnvFn func(key string, value string) error) {
	err := DotEnvLoad(absolutePathToEnvFile, setEnvFn)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Panic().Err(err).Str("envFile", absolutePathToEnvFile).Msg(".env parse error!")
		}
	} else {
		log.Warn().Str("envFile", absolutePathToEnvFile).Msg(".env overrides ENV variables!")
	}
}

// DotEnvLoad forcefully overrides ENV variables through the supplied .env file.
func DotEnvLoad(absolutePathToEnvFile string, setEnvFn func(key string, value string) error) error {
	file, err := os.Open(absolutePathToEnvFile)
	if err != nil {
		return err
	}
	defer file.Close()

	envs, err := gotenv.StrictParse(file)
	if err != nil {
		return err
	}

	for key, value := range envs {
		if err := setEnvFn(key, value); err != nil {
			return err
		}
	}

	return nil
}
