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

	"github.com/zombor/label-scan/internal/history"
	"github.com/zombor/label-scan/internal/imagesource"
	"github.com/zombor/label-scan/internal/scanning"
	"github.com/zombor/label-scan/internal/ui"
	"github.com/zombor/label-scan/internal/workflow"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env file is fine
	_ = godotenv.Load()

	fs := ff.NewFlagSet("label-scan")
	var (
		addr           = fs.StringLong("addr", "localhost:8080", "Address the view server listens on")
		historyBackend = fs.StringLong("history-backend", history.BackendBolt, "History storage: 'bolt', 'file' or 'sqlite'")
		historyPath    = fs.StringLong("history-path", "label-scan.db", "History database file (or directory for 'file')")
		analyzerType   = fs.StringLong("analyzer", "service", "Analyzer: 'service', 'gemini' or 'ollama'")
		serviceURL     = fs.StringLong("service-url", "http://localhost:5000", "Analysis service base URL")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		assistantType  = fs.StringLong("assistant", "service", "Follow-up assistant: 'service', 'gemini' or 'none'")
		camera         = fs.BoolLong("camera", "Enable camera capture through the view")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		requestTimeout = fs.DurationLong("request-timeout", 60*time.Second, "Limit for one analysis request (0 for none)")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		_              = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("LABEL_SCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("Initializing history store...", "backend", *historyBackend, "path", *historyPath)
	kv, err := history.Open(*historyBackend, *historyPath)
	if err != nil {
		slog.Error("Failed to open history store", "error", err)
		os.Exit(1)
	}
	store := history.NewStore(kv)
	defer store.Close()
	slog.Info("History loaded", "entries", len(store.Load()))

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	var gemini *scanning.Gemini
	openGemini := func() *scanning.Gemini {
		if gemini != nil {
			return gemini
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini...", "model", *geminiModel)
		g, err := scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
		gemini = g
		return gemini
	}

	var analyzer scanning.Analyzer
	switch *analyzerType {
	case "service":
		slog.Info("Initializing analysis service client...", "url", *serviceURL)
		analyzer, err = scanning.NewService(*serviceURL, *requestTimeout)
	case "gemini":
		analyzer = openGemini()
	case "ollama":
		slog.Info("Initializing Ollama analyzer...", "url", *ollamaURL, "model", *ollamaModel)
		analyzer, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
	default:
		slog.Error("Invalid analyzer type", "type", *analyzerType, "valid", "service, gemini or ollama")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize analyzer", "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	var assistant scanning.Assistant
	switch *assistantType {
	case "service":
		assistant, err = scanning.NewServiceAssistant(*serviceURL, *requestTimeout)
		if err != nil {
			slog.Error("Failed to initialize assistant", "error", err)
			os.Exit(1)
		}
	case "gemini":
		if *analyzerType != "gemini" {
			defer openGemini().Close()
		}
		assistant = openGemini().Assistant()
	case "none":
	default:
		slog.Error("Invalid assistant type", "type", *assistantType, "valid", "service, gemini or none")
		os.Exit(1)
	}

	opts := workflow.Options{
		Assistant:      assistant,
		RequestTimeout: *requestTimeout,
	}
	var feed *imagesource.FeedDevice
	if *camera {
		feed = imagesource.NewFeedDevice(true)
		opts.Camera = feed
	}

	wf := workflow.New(analyzer, store, opts)

	server := ui.NewServer(wf, feed, ui.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	go func() {
		if err := server.Start(*addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", "http://"+*addr)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	wf.GoToDashboard()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Failed to shut down server", "error", err)
	}
	wf.Wait()
}
