package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/chowline/orderbot/internal/api"
	"github.com/chowline/orderbot/internal/catalog"
	"github.com/chowline/orderbot/internal/flow"
	"github.com/chowline/orderbot/internal/geo"
	"github.com/chowline/orderbot/internal/lockfile"
	"github.com/chowline/orderbot/internal/messaging"
	"github.com/chowline/orderbot/internal/router"
	"github.com/chowline/orderbot/internal/scheduler"
	"github.com/chowline/orderbot/internal/session"
	"github.com/chowline/orderbot/internal/store"
	"github.com/chowline/orderbot/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for orderbot state data
	DefaultStateDir = "/var/lib/orderbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "orderbot.db"
	// sessionCleanupSchedule is the cron schedule for sweeping expired sessions
	sessionCleanupSchedule = "*/5 * * * *"
	// TwilioWebhookPath is where inbound Twilio deliveries are received
	TwilioWebhookPath = "/webhook/twilio"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping orderbot with configured modules")
	if err := run(flags); err != nil {
		slog.Error("orderbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("orderbot exited successfully")
}

// Config holds environment configuration.
type Config struct {
	DatabaseURL      string        `envconfig:"DATABASE_URL"`
	StateDir         string        `envconfig:"ORDERBOT_STATE_DIR"`
	APIAddr          string        `envconfig:"API_ADDR"`
	GoogleMapsKey    string        `envconfig:"GOOGLE_MAPS_API_KEY"`
	Channel          string        `envconfig:"MESSAGING_CHANNEL" default:"whatsapp"`
	TwilioAccountSID string        `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string        `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string        `envconfig:"TWILIO_WHATSAPP_FROM"`
	SessionTimeout   time.Duration `envconfig:"SESSION_TIMEOUT"`
}

// Flags holds command line flag values.
type Flags struct {
	qrOutput       *string
	numeric        *bool
	stateDir       *string
	dbDSN          *string
	apiAddr        *string
	mapsAPIKey     *string
	channel        *string
	sessionTimeout *time.Duration
	twilioSID      string
	twilioToken    string
	twilioFrom     string
}

// initializeLogger sets up structured logging with debug level.
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and
// an optional .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		slog.Warn("failed to process environment configuration", "error", err)
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ORDERBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Without any database URL, default to SQLite in the state directory.
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"ORDERBOT_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"GOOGLE_MAPS_API_KEY_SET", config.GoogleMapsKey != "",
		"MESSAGING_CHANNEL", config.Channel,
		"TWILIO_CONFIGURED", config.TwilioAccountSID != "",
		"SESSION_TIMEOUT", config.SessionTimeout)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:       flag.String("qr-output", "", "path to write login QR code"),
		numeric:        flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for orderbot data (overrides $ORDERBOT_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN for the record store (overrides $DATABASE_URL)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		mapsAPIKey:     flag.String("maps-api-key", config.GoogleMapsKey, "Google Maps API key (overrides $GOOGLE_MAPS_API_KEY)"),
		channel:        flag.String("channel", config.Channel, "messaging channel, whatsapp or twilio (overrides $MESSAGING_CHANNEL)"),
		sessionTimeout: flag.Duration("session-timeout", config.SessionTimeout, "idle session expiry (overrides $SESSION_TIMEOUT)"),
		twilioSID:      config.TwilioAccountSID,
		twilioToken:    config.TwilioAuthToken,
		twilioFrom:     config.TwilioFrom,
	}

	flag.Parse()

	// Moving the state directory moves the default SQLite path with it.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"mapsKeySet", *flags.mapsAPIKey != "",
		"channel", *flags.channel,
		"sessionTimeout", *flags.sessionTimeout)

	return flags
}

// ensureDirectoriesExist creates the state directory when the record store
// is file based.
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) != "sqlite3" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	return os.MkdirAll(stateDir, 0755)
}

// buildRecordStore constructs the record store from the DSN.
func buildRecordStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildMessagingService constructs the outbound channel: Whatsmeow by
// default, Twilio when selected.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if *flags.channel == "twilio" {
		return messaging.NewTwilioService(
			messaging.WithAccountSID(flags.twilioSID),
			messaging.WithAuthToken(flags.twilioToken),
			messaging.WithFromWhatsApp(flags.twilioFrom),
		)
	}

	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsapp.db")))

	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}
	return messaging.NewWhatsAppService(client), nil
}

// run wires the modules together and blocks until shutdown.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	records, err := buildRecordStore(flags)
	if err != nil {
		return err
	}
	defer records.Close()

	geocoder, err := geo.NewGoogleGeocoder(geo.WithAPIKey(*flags.mapsAPIKey))
	if err != nil {
		return err
	}

	var sessionOpts []session.Option
	if *flags.sessionTimeout > 0 {
		sessionOpts = append(sessionOpts, session.WithTimeout(*flags.sessionTimeout))
	}
	sessions := session.NewStore(sessionOpts...)

	engine := flow.NewEngine(sessions, records, geocoder, catalog.NewDefaultProvider())
	rt := router.New(sessions, engine)

	msgService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}
	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := msgService.Stop(); err != nil {
			slog.Error("Failed to stop messaging service", "error", err)
		}
	}()

	dispatcher := messaging.NewDispatcher(msgService, rt)
	dispatcher.Start(ctx)

	sched := scheduler.New()
	defer sched.Stop()
	if err := sched.AddJob(sessionCleanupSchedule, func() {
		if n := sessions.CleanupExpired(); n > 0 {
			slog.Info("Expired sessions cleaned", "count", n)
		}
	}); err != nil {
		return err
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	// Twilio delivers inbound messages over HTTP, so its webhook rides on
	// the API listener.
	if twilio, ok := msgService.(*messaging.TwilioService); ok {
		apiOpts = append(apiOpts, api.WithWebhook(TwilioWebhookPath, twilio.WebhookHandler))
	}
	srv := api.NewServer(engine, rt, sessions, records, apiOpts...)
	return srv.Run(ctx)
}
