package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/meligy89/invoice-app/internal/invoice"
	"github.com/meligy89/invoice-app/internal/parsing"
	"github.com/meligy89/invoice-app/internal/scanning"
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

	fs := ff.NewFlagSet("yalla-split")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "yalla-split.db", "Database file path")
		storagePath = fs.StringLong("storage", "./uploads", "Storage directory path")
		scannerType = fs.StringLong("scanner", "tesseract", "Scanner type: 'tesseract', 'gemini' or 'ollama'")
		tessLangs   = fs.StringLong("tesseract-langs", "eng,ara", "Comma-separated Tesseract languages")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		smtpHost    = fs.StringLong("smtp-host", "", "SMTP host for emailing invoices (optional)")
		smtpPort    = fs.IntLong("smtp-port", 587, "SMTP port")
		smtpUser    = fs.StringLong("smtp-user", "", "SMTP username")
		smtpPass    = fs.StringLong("smtp-pass", "", "SMTP password")
		smtpFrom    = fs.StringLong("smtp-from", "", "From address (defaults to smtp-user)")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("YALLA_SPLIT"),
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

	// Initialize database
	slog.Info("Initializing database...")
	db, err := invoice.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "tesseract":
		langs := strings.Split(*tessLangs, ",")
		for i := range langs {
			langs[i] = strings.TrimSpace(langs[i])
		}
		slog.Info("Initializing Tesseract scanner...", "languages", langs)
		scanner, err = scanning.NewTesseract(langs...)
		if err != nil {
			slog.Error("Failed to initialize Tesseract", "error", err)
			os.Exit(1)
		}
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "tesseract, gemini or ollama")
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := invoice.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize mailer when SMTP is configured
	var mailer invoice.Mailer
	if *smtpHost != "" {
		m, err := invoice.NewSMTPMailer(invoice.SMTPConfig{
			Host:     *smtpHost,
			Port:     *smtpPort,
			Username: *smtpUser,
			Password: *smtpPass,
			From:     *smtpFrom,
		})
		if err != nil {
			slog.Error("Failed to initialize mailer", "error", err)
			os.Exit(1)
		}
		mailer = m
		slog.Info("Email enabled", "host", *smtpHost, "user", *smtpUser)
	}

	// Initialize service
	invoiceService := invoice.NewService(db, scanner, store, parsing.NewDefault(), mailer)

	// Initialize server
	basicAuth := invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := invoice.NewServer(invoiceService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
