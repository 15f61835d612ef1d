package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/issuegate/internal/api"
	"github.com/mattjoyce/issuegate/internal/config"
	"github.com/mattjoyce/issuegate/internal/doctor"
	"github.com/mattjoyce/issuegate/internal/eventlog"
	"github.com/mattjoyce/issuegate/internal/events"
	"github.com/mattjoyce/issuegate/internal/lock"
	"github.com/mattjoyce/issuegate/internal/log"
	"github.com/mattjoyce/issuegate/internal/upstream"
	"github.com/mattjoyce/issuegate/internal/webhook"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	os.Exit(run(os.Args[1], os.Args[2:]))
}

func run(cmd string, args []string) int {
	switch cmd {
	case "serve", "start":
		return runServe(args)
	case "check", "doctor":
		return runCheck(args)
	case "version":
		fmt.Printf("issuegate version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`issuegate - GitHub issues gateway with signed webhook ingestion

Usage:
  issuegate <command> [flags]

Commands:
  serve     Run the HTTP gateway in the foreground
  check     Validate configuration and probe the upstream repository
  version   Show version information
  help      Show this help message

Common flags:
  --config <path>    Optional YAML configuration file
  --env-file <path>  Dotenv file to load first (default .env)
  --db <path>        Event database path (overrides state.path)

Required environment:
  GITHUB_TOKEN, GITHUB_OWNER, GITHUB_REPO, WEBHOOK_SECRET
`)
}

type commonFlags struct {
	configPath string
	envFile    string
	dbPath     string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to YAML configuration file")
	fs.StringVar(&c.envFile, "env-file", ".env", "Dotenv file loaded before the environment")
	fs.StringVar(&c.dbPath, "db", "", "Event database path")
}

func (c *commonFlags) apply(cfg *config.Config) {
	if c.dbPath != "" {
		cfg.State.Path = c.dbPath
	}
}

func runServe(args []string) int {
	var common commonFlags
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Resolve(common.configPath, common.envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return doctor.ExitConfig
	}
	common.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		return doctor.ExitConfig
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("issuegate starting", "version", version, "repository", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo)

	lockPath := lock.PathFor(cfg.State.Path)
	instance, err := lock.Acquire(lockPath)
	if err != nil {
		logger.Error("failed to acquire instance lock (another instance may be running)", "path", lockPath, "error", err)
		return 1
	}
	defer instance.Release()
	logger.Info("acquired instance lock", "path", instance.Path())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := eventlog.Open(ctx, cfg.State.Path, eventlog.Options{
		RecentKeys:   cfg.Events.RecentKeys,
		RecentKeyTTL: cfg.Events.RecentKeyTTL,
	})
	if err != nil {
		logger.Error("failed to open event log", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer store.Close()
	logger.Info("event log opened", "path", cfg.State.Path)

	client, err := newUpstreamClient(cfg)
	if err != nil {
		logger.Error("failed to build upstream client", "error", err)
		return 1
	}

	hub := events.NewHub(cfg.Events.StreamBuffer)
	pipeline := webhook.NewPipeline(cfg.Webhook.Secret, store, hub, log.WithComponent("webhook"))

	server := api.New(api.Config{
		Listen:    cfg.ListenAddr(),
		PublicDir: cfg.Server.PublicDir,
	}, client, store, pipeline.Handler(cfg.Webhook.MaxBodySize), hub, log.WithComponent("api"))

	logger.Info("issuegate running (press Ctrl+C to stop)", "listen", cfg.ListenAddr())
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server failed", "error", err)
		return 1
	}

	logger.Info("issuegate stopped")
	return 0
}

func runCheck(args []string) int {
	var common commonFlags
	var format string
	var jsonOut bool

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	common.register(fs)
	fs.StringVar(&format, "format", "human", "Output format (human, json)")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		return doctor.ExitConfig
	}
	if jsonOut {
		format = "json"
	}

	cfg, err := config.Resolve(common.configPath, common.envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return doctor.ExitConfig
	}
	common.apply(cfg)

	var prober doctor.Prober
	if client, err := newUpstreamClient(cfg); err == nil {
		prober = client
	}

	result := doctor.New(cfg, prober).Run(context.Background())

	switch format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	default:
		fmt.Print(doctor.FormatHuman(result))
	}
	return result.ExitCode()
}

func newUpstreamClient(cfg *config.Config) (*upstream.Client, error) {
	return upstream.New(upstream.Config{
		Token:             cfg.GitHub.Token,
		Owner:             cfg.GitHub.Owner,
		Repo:              cfg.GitHub.Repo,
		BaseURL:           cfg.GitHub.BaseURL,
		Timeout:           cfg.GitHub.Timeout,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
	}, log.WithComponent("upstream"))
}
