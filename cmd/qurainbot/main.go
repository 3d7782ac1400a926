package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/qurain/qurainbot/internal/api"
	"github.com/qurain/qurainbot/internal/catalog"
	"github.com/qurain/qurainbot/internal/flow"
	"github.com/qurain/qurainbot/internal/messaging"
	"github.com/qurain/qurainbot/internal/store"
	"github.com/qurain/qurainbot/internal/util"
)

// Default configuration constants
const (
	// DefaultPort is the default HTTP listen port.
	DefaultPort = 10000
	// DefaultSessionTimeout is the default conversation inactivity timeout.
	DefaultSessionTimeout = 1800 * time.Second
)

// Config holds environment configuration
type Config struct {
	AdminPhone     string
	APIKey         string
	BaseURL        string
	Port           int
	SessionTimeout time.Duration
	SendTimeout    time.Duration
	UnknownPolicy  string
	DigitPolicy    string
	ServicesFile   string
}

// Flags holds command line flag values
type Flags struct {
	addr          *string
	adminPhone    *string
	apiKey        *string
	baseURL       *string
	servicesFile  *string
	unknownPolicy *string
	digitPolicy   *string
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	cat, err := loadCatalog(*flags.servicesFile)
	if err != nil {
		slog.Error("Failed to load service catalog", "error", err)
		os.Exit(1)
	}

	notifier := buildNotifier(flags, config)
	storeOpts := buildStoreOptions(config)
	engineOpts := buildEngineOptions(flags)
	apiOpts := []api.Option{api.WithAddr(*flags.addr)}

	if *flags.adminPhone == "" {
		slog.Warn("No admin phone configured; completed submissions will not be forwarded")
	}

	slog.Info("Bootstrapping Qurain bot", "addr", *flags.addr, "services", cat.Len(), "sessionTimeout", config.SessionTimeout)
	if err := api.Run(cat, notifier, *flags.adminPhone, storeOpts, engineOpts, apiOpts); err != nil {
		slog.Error("Qurain bot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Qurain bot exited successfully")
}

// initializeLogger sets up structured logging.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		AdminPhone:     os.Getenv("ADMIN_PHONE"),
		APIKey:         os.Getenv("WASENDER_API_KEY"),
		BaseURL:        os.Getenv("WASENDER_BASE_URL"),
		Port:           util.ParseIntEnv("PORT", DefaultPort),
		SessionTimeout: util.ParseSecondsEnv("SESSION_TIMEOUT", DefaultSessionTimeout),
		SendTimeout:    util.ParseSecondsEnv("SEND_TIMEOUT", messaging.DefaultSendTimeout),
		UnknownPolicy:  os.Getenv("UNKNOWN_MESSAGE_POLICY"),
		DigitPolicy:    os.Getenv("MIDFLOW_DIGIT_POLICY"),
		ServicesFile:   os.Getenv("SERVICES_FILE"),
	}

	if config.UnknownPolicy == "" {
		config.UnknownPolicy = string(flow.UnknownIgnore)
	}
	if config.DigitPolicy == "" {
		config.DigitPolicy = string(flow.DigitAnswer)
	}

	slog.Debug("environment variables loaded",
		"ADMIN_PHONE_SET", config.AdminPhone != "",
		"WASENDER_API_KEY_SET", config.APIKey != "",
		"WASENDER_BASE_URL", config.BaseURL,
		"PORT", config.Port,
		"SESSION_TIMEOUT", config.SessionTimeout,
		"UNKNOWN_MESSAGE_POLICY", config.UnknownPolicy,
		"MIDFLOW_DIGIT_POLICY", config.DigitPolicy,
		"SERVICES_FILE", config.ServicesFile)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		addr:          flag.String("addr", fmt.Sprintf(":%d", config.Port), "HTTP listen address (overrides $PORT)"),
		adminPhone:    flag.String("admin-phone", config.AdminPhone, "administrator destination (overrides $ADMIN_PHONE)"),
		apiKey:        flag.String("api-key", config.APIKey, "WaSender API key (overrides $WASENDER_API_KEY)"),
		baseURL:       flag.String("base-url", config.BaseURL, "WaSender base URL (overrides $WASENDER_BASE_URL)"),
		servicesFile:  flag.String("services-file", config.ServicesFile, "JSON service catalog file (overrides $SERVICES_FILE)"),
		unknownPolicy: flag.String("unknown-policy", config.UnknownPolicy, "unrecognized message policy: ignore or help (overrides $UNKNOWN_MESSAGE_POLICY)"),
		digitPolicy:   flag.String("digit-policy", config.DigitPolicy, "mid-flow digit policy: answer, drop, or exit (overrides $MIDFLOW_DIGIT_POLICY)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"addr", *flags.addr,
		"adminPhoneSet", *flags.adminPhone != "",
		"apiKeySet", *flags.apiKey != "",
		"baseURL", *flags.baseURL,
		"servicesFile", *flags.servicesFile,
		"unknownPolicy", *flags.unknownPolicy,
		"digitPolicy", *flags.digitPolicy)

	return flags
}

// loadCatalog loads the service catalog from the given file, or the built-in
// default catalog when no file is configured.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		slog.Debug("No services file configured, using built-in catalog")
		return catalog.Default(), nil
	}
	return catalog.LoadFile(path)
}

// buildNotifier constructs the WaSender gateway client.
func buildNotifier(flags Flags, config Config) messaging.Service {
	var msgOpts []messaging.WaSenderOption
	if *flags.baseURL != "" {
		msgOpts = append(msgOpts, messaging.WithBaseURL(*flags.baseURL))
	}
	if config.SendTimeout != messaging.DefaultSendTimeout {
		msgOpts = append(msgOpts, messaging.WithSendTimeout(config.SendTimeout))
	}
	return messaging.NewWaSenderService(*flags.apiKey, msgOpts...)
}

// buildStoreOptions constructs conversation store configuration options
func buildStoreOptions(config Config) []store.Option {
	var storeOpts []store.Option
	if config.SessionTimeout != store.DefaultTimeout {
		storeOpts = append(storeOpts, store.WithTimeout(config.SessionTimeout))
	}
	return storeOpts
}

// buildEngineOptions constructs conversation engine configuration options
func buildEngineOptions(flags Flags) []flow.Option {
	var engineOpts []flow.Option
	switch flow.UnknownMessagePolicy(*flags.unknownPolicy) {
	case flow.UnknownIgnore, flow.UnknownHelp:
		engineOpts = append(engineOpts, flow.WithUnknownMessagePolicy(flow.UnknownMessagePolicy(*flags.unknownPolicy)))
	default:
		slog.Warn("Unknown message policy not recognized, using ignore", "policy", *flags.unknownPolicy)
	}
	switch flow.MidFlowDigitPolicy(*flags.digitPolicy) {
	case flow.DigitAnswer, flow.DigitDrop, flow.DigitExit:
		engineOpts = append(engineOpts, flow.WithMidFlowDigitPolicy(flow.MidFlowDigitPolicy(*flags.digitPolicy)))
	default:
		slog.Warn("Mid-flow digit policy not recognized, using answer", "policy", *flags.digitPolicy)
	}
	return engineOpts
}
