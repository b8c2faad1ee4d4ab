package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/idrea/receipt-bot/internal/dialogue"
	"github.com/idrea/receipt-bot/internal/extraction"
	"github.com/idrea/receipt-bot/internal/ledger"
	"github.com/idrea/receipt-bot/internal/notify"
	"github.com/idrea/receipt-bot/internal/session"
	"github.com/idrea/receipt-bot/internal/webhook"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// Local development keeps secrets in a .env file; absence is fine.
	_ = godotenv.Load()

	fs := ff.NewFlagSet("receipt-bot")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "receipt-bot.db", "Session database file path")
		ledgerDBPath   = fs.StringLong("ledger-db", "receipt-ledger.db", "Local ledger database file path")
		storagePath    = fs.StringLong("storage", "./receipts", "Local storage directory path")
		verifyToken    = fs.StringLong("verify-token", "", "WhatsApp webhook verify token")
		accessToken    = fs.StringLong("access-token", "", "WhatsApp Cloud API access token")
		phoneNumberID  = fs.StringLong("phone-number-id", "", "WhatsApp phone number id")
		graphVersion   = fs.StringLong("graph-version", "v18.0", "Graph API version")
		admins         = fs.StringLong("admins", "", "Comma-separated admin phone numbers")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		googleCreds    = fs.StringLong("google-credentials", "", "Google service account credentials file (enables Drive and Sheets)")
		driveFolder    = fs.StringLong("drive-folder", "", "Google Drive folder id for archived receipts")
		sheetID        = fs.StringLong("sheet-id", "", "Google Sheets spreadsheet id for the ledger")
		sheetName      = fs.StringLong("sheet-name", "Receipts", "Sheet name within the spreadsheet")
		idleTimeout    = fs.DurationLong("idle-timeout", 30*time.Minute, "Discard drafts idle for this long (0 disables)")
		extractTimeout = fs.DurationLong("extract-timeout", 60*time.Second, "Bound one extraction call")
		sweepInterval  = fs.DurationLong("sweep-interval", 5*time.Minute, "How often to sweep expired drafts")
		strict         = fs.BoolLong("strict-corrections", "Require a colon or equals sign in corrections")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_BOT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize session store
	slog.Info("Initializing session store...")
	store, err := session.NewBoltStore(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize extractor
	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		os.Exit(1)
	}
	slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
	extractor, err := extraction.NewGemini(apiKey, *geminiModel)
	if err != nil {
		slog.Error("Failed to initialize Gemini", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// Initialize archiver and ledger. With Google credentials the receipts
	// go to Drive and the rows to Sheets; otherwise everything stays local.
	var (
		archiver ledger.Archiver
		book     ledger.Ledger
	)
	if *googleCreds != "" {
		if *sheetID == "" {
			slog.Error("--sheet-id is required when --google-credentials is set")
			os.Exit(1)
		}
		slog.Info("Initializing Google Drive archiver...", "folder", *driveFolder)
		archiver, err = ledger.NewDriveArchiver(ctx, *googleCreds, *driveFolder)
		if err != nil {
			slog.Error("Failed to initialize Drive", "error", err)
			os.Exit(1)
		}
		slog.Info("Initializing Google Sheets ledger...", "spreadsheet", *sheetID, "sheet", *sheetName)
		book, err = ledger.NewSheetsLedger(ctx, *googleCreds, *sheetID, *sheetName)
		if err != nil {
			slog.Error("Failed to initialize Sheets", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("Initializing local storage...", "path", *storagePath)
		archiver, err = ledger.NewLocalArchiver(*storagePath)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		slog.Info("Initializing local ledger...", "path", *ledgerDBPath)
		localLedger, err := ledger.NewBoltLedger(*ledgerDBPath)
		if err != nil {
			slog.Error("Failed to initialize ledger", "error", err)
			os.Exit(1)
		}
		defer localLedger.Close()
		book = localLedger
	}

	// Initialize WhatsApp client
	var adminList []string
	for _, a := range strings.Split(*admins, ",") {
		if a = strings.TrimSpace(a); a != "" {
			adminList = append(adminList, a)
		}
	}
	whatsapp, err := notify.NewWhatsApp("", *accessToken, *phoneNumberID, *graphVersion, adminList)
	if err != nil {
		slog.Error("Failed to initialize WhatsApp client", "error", err)
		os.Exit(1)
	}

	// Initialize dialogue controller
	controller := dialogue.NewController(store, extractor, archiver, book, whatsapp, dialogue.Config{
		IdleTimeout:      *idleTimeout,
		ExtractTimeout:   *extractTimeout,
		LooseCorrections: !*strict,
	})

	// Sweep expired drafts in the background
	if *idleTimeout > 0 {
		go session.Sweep(ctx, store, *sweepInterval, *idleTimeout)
	}

	if *verifyToken == "" {
		slog.Warn("No webhook verify token configured")
	}
	server := webhook.NewServer(controller, whatsapp, whatsapp, *verifyToken, version)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
