// Command ragflow indexes source repositories into a vector store and
// answers questions about them with retrieval-augmented generation.
//
// Usage:
//
//	ragflow index --repo ./path [--namespace ns] [--reset]   # ingest a repository
//	ragflow ask --namespace ns "question"                    # ask with retrieval
//	ragflow status --namespace ns                            # index statistics
//	ragflow version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/ragflow/config"
	"github.com/BaSui01/ragflow/rag/loader"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "index":
		runIndex(os.Args[2:])
	case "ask":
		runAsk(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	repoPath := fs.String("repo", ".", "Repository directory to index")
	namespace := fs.String("namespace", "", "Target namespace (default: repo directory name)")
	reset := fs.Bool("reset", false, "Delete the namespace before indexing")
	fs.Parse(args)

	a, logger := mustBuildApp(*configPath)
	defer a.Close()
	defer logger.Sync()

	if err := a.requireIngest(); err != nil {
		fatal(logger, "index unavailable", err)
	}

	ns := *namespace
	if ns == "" {
		abs, err := filepath.Abs(*repoPath)
		if err != nil {
			fatal(logger, "cannot resolve repo path", err)
		}
		ns = filepath.Base(abs)
	}

	ctx, stop := signalContext()
	defer stop()

	if *reset {
		if err := a.store.DeleteNamespace(ctx, ns); err != nil {
			fatal(logger, "namespace reset failed", err)
		}
		if err := a.registry.Forget(ctx, ns); err != nil {
			fatal(logger, "hash registry reset failed", err)
		}
		logger.Info("namespace reset", zap.String("namespace", ns))
	}

	repo := loader.NewDirectoryLoader(*repoPath, loader.FilesystemConfig{
		MaxFileSize: a.cfg.Ingest.MaxFileSize,
	}, logger)

	result, err := a.ingestor.IngestRepository(ctx, ns, repo)
	if err != nil {
		fatal(logger, "ingestion failed", err)
	}

	fmt.Printf("Indexed %d documents into %q: %d chunks, %d embedded, %d deduplicated\n",
		result.Documents, ns, result.Chunks, result.Embedded, result.Deduplicated)
	if len(result.FailedDocuments) > 0 {
		fmt.Printf("Failed documents (%d):\n", len(result.FailedDocuments))
		for _, p := range result.FailedDocuments {
			fmt.Printf("  %s\n", p)
		}
	}
	if result.Partial {
		fmt.Println("Warning: ingestion completed partially; re-run to fill the gaps.")
		os.Exit(2)
	}
}

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	namespace := fs.String("namespace", "", "Namespace to search")
	conversation := fs.String("conversation", "", "Conversation id (default: random)")
	fs.Parse(args)

	prompt := fs.Arg(0)
	if prompt == "" {
		fmt.Fprintln(os.Stderr, "ask: question argument is required")
		os.Exit(1)
	}

	a, logger := mustBuildApp(*configPath)
	defer a.Close()
	defer logger.Sync()

	convID := *conversation
	if convID == "" {
		convID = uuid.NewString()
	}

	ctx, stop := signalContext()
	defer stop()

	result := a.pipeline.Respond(ctx, convID, *namespace, prompt, nil)
	if !result.Success {
		fmt.Fprintf(os.Stderr, "Error: %s\n", result.Error)
		os.Exit(1)
	}

	fmt.Println(result.Response)
	if result.RAGEnabled {
		fmt.Printf("\n[answered with repository context, conversation %s]\n", result.ConversationID)
	} else {
		fmt.Printf("\n[answered without repository context, conversation %s]\n", result.ConversationID)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	namespace := fs.String("namespace", "", "Namespace to inspect (empty: whole index)")
	fs.Parse(args)

	a, logger := mustBuildApp(*configPath)
	defer a.Close()
	defer logger.Sync()

	if a.store == nil {
		fmt.Println("No vector store configured; queries run in standard mode.")
		return
	}

	ctx, stop := signalContext()
	defer stop()

	count, err := a.store.Count(ctx, *namespace)
	if err != nil {
		fatal(logger, "index stats unavailable", err)
	}
	if *namespace == "" {
		fmt.Printf("Index holds %d vectors.\n", count)
	} else {
		fmt.Printf("Namespace %q holds %d vectors.\n", *namespace, count)
	}

	status := a.queue.Status()
	fmt.Printf("Queue: %d pending, processing=%v\n", status.Length, status.Processing)
}

func mustBuildApp(configPath string) (*app, *zap.Logger) {
	l := config.NewLoader()
	if configPath != "" {
		l = l.WithConfigPath(configPath)
	}
	cfg, err := l.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	logger.Info("starting ragflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	a, err := buildApp(cfg, logger)
	if err != nil {
		fatal(logger, "startup failed", err)
	}
	return a, logger
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func fatal(logger *zap.Logger, msg string, err error) {
	logger.Error(msg, zap.Error(err))
	_ = logger.Sync()
	os.Exit(1)
}

func printVersion() {
	fmt.Printf("ragflow %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
}

func printUsage() {
	fmt.Println(`ragflow - retrieval-augmented answers over source repositories

Commands:
  index    Ingest a repository into the vector index
  ask      Ask a question, grounded in an indexed repository
  status   Show index and queue statistics
  version  Print version information

Run "ragflow <command> -h" for command flags.`)
}
