package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pennykit/pennychat/internal/api"
	"github.com/pennykit/pennychat/internal/audio"
	"github.com/pennykit/pennychat/internal/bot"
	"github.com/pennykit/pennychat/internal/dialogue"
	"github.com/pennykit/pennychat/internal/messages"
	"github.com/pennykit/pennychat/internal/messaging"
	"github.com/pennykit/pennychat/internal/nlu"
	"github.com/pennykit/pennychat/internal/store"
	"github.com/pennykit/pennychat/internal/twiliowhatsapp"
	"github.com/pennykit/pennychat/internal/util"
	"github.com/pennykit/pennychat/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for PennyChat state data
	DefaultStateDir = "/var/lib/pennychat"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "pennychat.db"
	// replUserID is the fixed user identity for local REPL sessions
	replUserID = "repl"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	catalog := messages.MustLoad()
	engine := dialogue.New(catalog, slog.Default())

	provider, err := buildNLUProvider(flags)
	if err != nil {
		slog.Error("Failed to configure NLU provider", "error", err)
		os.Exit(1)
	}

	if *flags.repl {
		runREPL(bot.New(store.NewInMemoryStore(), provider, engine, catalog))
		return
	}

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	b := bot.New(st, provider, engine, catalog)

	msgService, pusher, err := buildMessagingService(flags)
	if err != nil {
		slog.Error("Failed to initialize messaging transport", "error", err)
		os.Exit(1)
	}

	transcoder := audio.NewConverter(buildAudioOptions(flags)...)
	handler := messaging.NewResponseHandler(b, msgService, catalog, transcoder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := msgService.Start(ctx); err != nil {
		slog.Error("Failed to start messaging transport", "error", err)
		os.Exit(1)
	}
	go handler.Run(ctx)

	server := api.NewServer(b, pusher, buildAPIOptions(flags)...)
	go func() {
		if err := server.Run(); err != nil {
			slog.Error("API server failed", "error", err)
			stop()
		}
	}()

	slog.Info("PennyChat running", "transport", *flags.transport)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	if err := msgService.Stop(); err != nil {
		slog.Error("Messaging transport stop failed", "error", err)
	}
	slog.Info("PennyChat exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir    string
	DatabaseURL string
	APIAddr     string
	Transport   string
	WitToken    string
	OpenAIKey   string
	FFmpegPath  string
}

// Flags holds command line flag values
type Flags struct {
	repl       *bool
	qrOutput   *string
	numeric    *bool
	stateDir   *string
	dbDSN      *string
	apiAddr    *string
	transport  *string
	nluBackend *string
	witToken   *string
	openaiKey  *string
	ffmpegPath *string
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("PENNYCHAT_DEBUG", false) {
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
		StateDir:    os.Getenv("PENNYCHAT_STATE_DIR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		APIAddr:     os.Getenv("API_ADDR"),
		Transport:   os.Getenv("MESSAGING_BACKEND"),
		WitToken:    os.Getenv("WIT_ACCESS_TOKEN"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		FFmpegPath:  os.Getenv("FFMPEG_PATH"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No PENNYCHAT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.Transport == "" {
		config.Transport = "whatsapp"
	}

	slog.Debug("environment variables loaded",
		"PENNYCHAT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_BACKEND", config.Transport,
		"WIT_ACCESS_TOKEN_SET", config.WitToken != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		repl:       flag.Bool("repl", false, "run an interactive terminal session instead of the service"),
		qrOutput:   flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:    flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for PennyChat data (overrides $PENNYCHAT_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN for the expense store and WhatsApp session (overrides $DATABASE_URL)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		transport:  flag.String("transport", config.Transport, "messaging transport: whatsapp or twilio (overrides $MESSAGING_BACKEND)"),
		nluBackend: flag.String("nlu", "", "NLU backend: wit or openai (default: wit if $WIT_ACCESS_TOKEN is set, else openai)"),
		witToken:   flag.String("wit-token", config.WitToken, "wit.ai server access token (overrides $WIT_ACCESS_TOKEN)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		ffmpegPath: flag.String("ffmpeg", config.FFmpegPath, "path to the ffmpeg binary for voice note transcoding (overrides $FFMPEG_PATH)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"repl", *flags.repl,
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"transport", *flags.transport,
		"nluBackend", *flags.nluBackend,
		"witTokenSet", *flags.witToken != "",
		"openaiKeySet", *flags.openaiKey != "")

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
		}
		slog.Debug("State directory ready", "state_dir", stateDir)
	}
	return nil
}

// buildStore constructs the expense store from the configured DSN
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		s, err := store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	s, err := store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// buildNLUProvider constructs the language understanding backend.
// Preference order: explicit -nlu flag, then wit.ai if a token is
// available, then OpenAI.
func buildNLUProvider(flags Flags) (nlu.Provider, error) {
	backend := *flags.nluBackend
	if backend == "" {
		if *flags.witToken != "" {
			backend = "wit"
		} else {
			backend = "openai"
		}
	}

	switch backend {
	case "wit":
		var opts []nlu.WitOption
		if *flags.witToken != "" {
			opts = append(opts, nlu.WithToken(*flags.witToken))
		}
		return nlu.NewWitClient(opts...)
	case "openai":
		var opts []nlu.OpenAIOption
		if *flags.openaiKey != "" {
			opts = append(opts, nlu.WithAPIKey(*flags.openaiKey))
		}
		return nlu.NewOpenAIProvider(opts...)
	default:
		return nil, fmt.Errorf("unknown NLU backend: %s", backend)
	}
}

// buildMessagingService constructs the configured transport. The second
// return value is non-nil only for webhook-fed transports.
func buildMessagingService(flags Flags) (messaging.Service, api.ResponsePusher, error) {
	switch *flags.transport {
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, err
		}
		service := messaging.NewTwilioService(client)
		return service, service, nil
	case "whatsapp":
		waOpts := []whatsapp.Option{whatsapp.WithDBDSN(*flags.dbDSN)}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewWhatsAppService(client), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown messaging transport: %s", *flags.transport)
	}
}

// buildAudioOptions constructs transcoder configuration options
func buildAudioOptions(flags Flags) []audio.Option {
	var opts []audio.Option
	if *flags.ffmpegPath != "" {
		opts = append(opts, audio.WithFFmpegPath(*flags.ffmpegPath))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	return opts
}

// runREPL drives the bot from stdin for local experimentation. Replies
// are printed as "[i/n] message" so multi-message turns stay readable.
func runREPL(b *bot.Bot) {
	fmt.Println("PennyChat REPL. Type a message and press enter; Ctrl-D exits.")
	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		result, err := b.HandleTurn(ctx, bot.Turn{UserID: replUserID, Text: text, Timestamp: time.Now()})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		for i, message := range result.Messages {
			fmt.Printf("[%d/%d] %s\n", i+1, len(result.Messages), message)
		}
	}
	fmt.Println()
}
