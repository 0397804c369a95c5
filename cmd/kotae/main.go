// Package main is the Kotae CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kotae/internal/assistant"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/knowledge"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "generate":
		runGenerate()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("knowledge", cfg.Knowledge.Path),
		zap.String("mode", cfg.Completion.Mode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bootstrapKnowledge(ctx, cfg, logger); err != nil {
		logger.Warn("knowledge base generation failed", zap.Error(err))
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if _, err := components.Service.Reload(ctx); err != nil {
		// The server still starts; /api/v1/status reports the failure and a later
		// reload (manual or on file change) can recover.
		logger.Error("initial knowledge load failed", zap.Error(err),
			zap.String("hint", describeLoadError(err, cfg.Knowledge.DatasetPath)))
	}

	if cfg.Knowledge.WatchOrDefault() {
		w, err := startWatcher(ctx, cfg, components.Service, logger)
		if err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(components.Service, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// startWatcher reloads the knowledge base when its file changes and regenerates it when
// the source dataset changes.
func startWatcher(ctx context.Context, cfg *config.Config, svc *assistant.Service, logger *zap.Logger) (*watcher.Watcher, error) {
	w := watcher.NewWatcher(watcher.WithLogger(logger))
	err := w.Watch(cfg.Knowledge.Path, func(path string) {
		logger.Info("knowledge base changed; reloading", zap.String("path", path))
		if n, err := svc.Reload(ctx); err == nil {
			logger.Info("knowledge base reloaded", zap.Int("records", n))
		}
	})
	if err != nil {
		return nil, err
	}
	if cfg.Knowledge.DatasetPath != "" {
		err := w.Watch(cfg.Knowledge.DatasetPath, func(path string) {
			logger.Info("dataset changed; regenerating knowledge base", zap.String("path", path))
			if _, err := newGenerator(logger).Run(ctx, path, cfg.Knowledge.Path); err != nil {
				logger.Error("knowledge base generation failed", zap.Error(err))
			}
		})
		if err != nil {
			return nil, err
		}
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// bootstrapKnowledge generates the knowledge base from the dataset when the knowledge
// file does not exist yet.
func bootstrapKnowledge(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Knowledge.DatasetPath == "" {
		return nil
	}
	if _, err := os.Stat(cfg.Knowledge.Path); err == nil {
		return nil
	}
	if _, err := os.Stat(cfg.Knowledge.DatasetPath); err != nil {
		return nil
	}
	_, err := newGenerator(logger).Run(ctx, cfg.Knowledge.DatasetPath, cfg.Knowledge.Path)
	return err
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so `kotae ask "query" -mode augmented`
// would otherwise leave -mode unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <question>\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kotae ask what is the conversion probability of Jane Doe
  kotae ask --mode augmented "Which company does Jane Doe work for?"
  kotae ask --server http://localhost:8080 --output json "industry of Acme"
`)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", "", "server URL; empty answers locally without a running server")
	mode := fs.String("mode", "", "composition mode: direct or augmented (default from config)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	req := models.AskRequest{Query: query, Mode: *mode}
	ctx := context.Background()

	var answer *models.Answer
	if *serverURL != "" {
		answer, err = cli.NewClient(*serverURL, 0).Ask(ctx, req)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		logger, err := utils.NewCLILogger(cfg.Debug || *debug)
		if err != nil {
			fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		if _, err := components.Service.Reload(ctx); err != nil {
			fatalf("%s", describeLoadError(err, cfg.Knowledge.DatasetPath))
		}
		answer, err = components.Service.Ask(ctx, req)
		if answer == nil {
			fatalf("Ask failed: %v", err)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fatalf("Output failed: %v", err)
	}
	if answer.Status == models.StatusUnavailable {
		os.Exit(2)
	}
}

func runGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dataset := fs.String("dataset", "", "leads dataset (.csv or .xlsx); default from config knowledge.dataset_path")
	out := fs.String("out", "", "output knowledge base JSON; default from config knowledge.path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	datasetPath, outPath := *dataset, *out
	if datasetPath == "" || outPath == "" {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		if datasetPath == "" {
			datasetPath = cfg.Knowledge.DatasetPath
		}
		if outPath == "" {
			outPath = cfg.Knowledge.Path
		}
	}
	if datasetPath == "" {
		fatalf("No dataset given; use --dataset or set knowledge.dataset_path")
	}
	logger, err := utils.NewCLILogger(*debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	n, err := newGenerator(logger).Run(context.Background(), datasetPath, outPath)
	if err != nil {
		fatalf("Generate failed: %v", err)
	}
	fmt.Printf("Generated %d question/answer pairs: %s\n", n, outPath)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = load the knowledge base locally)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	ctx := context.Background()

	var status *assistant.Status
	if *serverURL != "" {
		status, err = cli.NewClient(*serverURL, 10*time.Second).Status(ctx)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		logger, err := utils.NewCLILogger(cfg.Debug)
		if err != nil {
			fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		_, _ = components.Service.Reload(ctx)
		status = components.Service.Status(ctx)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "where to write the config file")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*path, *force); err != nil {
		fatalf("Init failed: %v", err)
	}
	fmt.Printf("Wrote default config: %s\n", *path)
}

// writeDefaultConfig saves a config holding every default to path.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

// describeLoadError turns a knowledge load failure into a message saying what to do next.
func describeLoadError(err error, datasetPath string) string {
	var notFound *knowledge.NotFoundError
	if errors.As(err, &notFound) {
		dataset := datasetPath
		if dataset == "" {
			dataset = "<leads.csv|leads.xlsx>"
		}
		return fmt.Sprintf("Knowledge base %s does not exist. Create it with: kotae generate --dataset %s --out %s",
			notFound.Path, dataset, notFound.Path)
	}
	var malformed *knowledge.MalformedDataError
	if errors.As(err, &malformed) {
		return fmt.Sprintf("Knowledge base is invalid: %v. Fix the file or regenerate it with kotae generate.", err)
	}
	return fmt.Sprintf("Failed to load knowledge base: %v", err)
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func printUsage() {
	fmt.Println(`kotae - Question answering over a generated B2B leads knowledge base

Usage:
  kotae server [flags]             Start the HTTP server
  kotae ask [flags] <question>     Answer a question
  kotae generate [flags]           Generate the knowledge base from a leads dataset
  kotae status [flags]             Show knowledge base and service status
  kotae init [flags]               Write a default config file
  kotae version                    Show version
  kotae help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (local mode)
  --server string    Server URL. Empty (default) answers locally.
  --mode string      direct or augmented (default from config)
  --output string    text, compact, or json (default: text)

Generate Flags:
  --dataset string   Leads dataset, .csv or .xlsx (default: knowledge.dataset_path)
  --out string       Output JSON (default: knowledge.path)

Status Flags:
  --config string    Config file path (local mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for local mode.
  --output string    text, compact, or json (default: text)

Init Flags:
  --config string    Where to write the config (default: config.yaml)
  --force            Overwrite an existing file

Environment:
  KOTAE_COMPLETION_ENDPOINT, KOTAE_COMPLETION_API_KEY, KOTAE_COMPLETION_MODE,
  KOTAE_THRESHOLD, KOTAE_EMBEDDING_MODEL, KOTAE_KNOWLEDGE_PATH (also read from .env)

Examples:
  kotae generate --dataset leads.csv
  kotae server
  kotae ask "What is the conversion probability of Jane Doe?"
  kotae ask --mode augmented --output json "Which company does Jane Doe work for?"
  kotae status --output json`)
}
