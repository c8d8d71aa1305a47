package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zhanghealth/zhanghealth/internal/api"
	"github.com/zhanghealth/zhanghealth/internal/genai"
	"github.com/zhanghealth/zhanghealth/internal/lockfile"
	"github.com/zhanghealth/zhanghealth/internal/meds"
	"github.com/zhanghealth/zhanghealth/internal/messaging"
	"github.com/zhanghealth/zhanghealth/internal/scheduler"
	"github.com/zhanghealth/zhanghealth/internal/secrets"
	"github.com/zhanghealth/zhanghealth/internal/store"
	"github.com/zhanghealth/zhanghealth/internal/twiliosms"
	"github.com/zhanghealth/zhanghealth/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for service state data
	DefaultStateDir = "/var/lib/zhanghealth"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "zhanghealth.db"
	// DefaultMembersFileName is the member roster file in the state directory
	DefaultMembersFileName = "members.json"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if err := run(flags); err != nil {
		slog.Error("zhanghealth failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("zhanghealth exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir         string
	DatabaseURL      string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	DataEncryptKey   string
	AdminSecret      string
	OpenAIKey        string
	APIAddr          string
	WebhookURL       string
	Backend          string
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDSN      *string
	openaiKey  *string
	apiAddr    *string
	webhookURL *string
	backend    *string
	qrOutput   *string
	numeric    *bool
	dryRun     *bool

	config Config
}

// initializeLogger sets up structured logging
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:         os.Getenv("ZHANGHEALTH_STATE_DIR"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		DataEncryptKey:   os.Getenv("DATA_ENCRYPTION_KEY"),
		AdminSecret:      os.Getenv("ADMIN_SECRET"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		APIAddr:          os.Getenv("API_ADDR"),
		WebhookURL:       os.Getenv("WEBHOOK_URL"),
		Backend:          os.Getenv("MESSAGING_BACKEND"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ZHANGHEALTH_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"ZHANGHEALTH_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"TWILIO_CREDENTIALS_SET", config.TwilioAccountSID != "" && config.TwilioAuthToken != "",
		"DATA_ENCRYPTION_KEY_SET", config.DataEncryptKey != "",
		"ADMIN_SECRET_SET", config.AdminSecret != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_BACKEND", config.Backend)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for service data (overrides $ZHANGHEALTH_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN for the readings store (overrides $DATABASE_URL)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		webhookURL: flag.String("webhook-url", config.WebhookURL, "public webhook URL for Twilio signature validation (overrides $WEBHOOK_URL)"),
		backend:    flag.String("backend", config.Backend, "messaging backend: twilio or whatsapp (overrides $MESSAGING_BACKEND)"),
		qrOutput:   flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:    flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
		dryRun:     flag.Bool("dry-run", false, "log outbound messages instead of sending them"),
		config:     config,
	}

	flag.Parse()

	// Keep the SQLite default inside the state directory when only the
	// state directory was overridden.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated db DSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"backend", *flags.backend,
		"dryRun", *flags.dryRun)

	return flags
}

// ensureDirectoriesExist creates the state directory for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return os.MkdirAll(*flags.stateDir, 0755)
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(*flags.stateDir, 0755)
}

// buildDataStore opens the readings store matching the DSN type.
func buildDataStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		s, err := store.NewPostgresStore(store.WithPostgresDSN(dsn))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	s, err := store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// buildMessagingService selects the transport. Twilio without credentials
// degrades to a dry-run client that logs instead of sending.
func buildMessagingService(flags Flags) (messaging.Service, api.SignatureValidator, bool, error) {
	if *flags.backend == "whatsapp" {
		var waOpts []whatsapp.Option
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.dbDSN))
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, false, err
		}
		return messaging.NewWhatsAppService(client), nil, false, nil
	}

	cfg := flags.config
	liveCreds := cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != ""
	if *flags.dryRun || !liveCreds {
		if !liveCreds {
			slog.Warn("main: Twilio credentials not configured, running in dry-run mode")
		}
		return messaging.NewTwilioService(twiliosms.NewDryRunClient()), nil, true, nil
	}

	client, err := twiliosms.NewClient(
		twiliosms.WithAccountSID(cfg.TwilioAccountSID),
		twiliosms.WithAuthToken(cfg.TwilioAuthToken),
		twiliosms.WithFromNumber(cfg.TwilioFromNumber),
	)
	if err != nil {
		return nil, nil, false, err
	}
	return messaging.NewTwilioService(client), client, false, nil
}

// run wires the modules together and serves until interrupted.
func run(flags Flags) error {
	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	cipher, err := secrets.NewCipher(flags.config.DataEncryptKey)
	if err != nil {
		return err
	}
	members, err := store.NewMemberStore(filepath.Join(*flags.stateDir, DefaultMembersFileName), cipher)
	if err != nil {
		return err
	}

	data, err := buildDataStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer data.Close()

	msgService, validator, dryRun, err := buildMessagingService(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	genaiClient := genai.NewClient(genaiOpts...)

	medsManager := meds.NewManager(data)
	replyHandler := messaging.NewReplyHandler(members, data, medsManager)

	// Drain the service's response and receipt channels: WhatsApp replies
	// are handled here (Twilio replies arrive over the webhook), receipts
	// are persisted for the admin API.
	dispatcher := messaging.NewDispatcher(msgService, replyHandler, data)
	dispatcher.Start(ctx)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	runner := scheduler.NewReminderRunner(members, msgService, medsManager, genaiClient)
	if err := runner.Schedule(ctx, sched); err != nil {
		return err
	}

	auth := secrets.NewAdminAuth(flags.config.AdminSecret, secrets.DefaultTokenTTL)

	apiOpts := []api.Option{}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.webhookURL != "" {
		apiOpts = append(apiOpts, api.WithWebhookURL(*flags.webhookURL))
	}
	if dryRun {
		apiOpts = append(apiOpts, api.WithDryRun())
	}
	if validator != nil {
		apiOpts = append(apiOpts, api.WithSignatureValidator(validator))
	}
	server := api.NewServer(msgService, members, data, medsManager, replyHandler, auth, apiOpts...)

	slog.Info("Bootstrapping zhanghealth with configured modules",
		"state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "dry_run", dryRun)
	return server.Run(ctx)
}
