package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/harunnryd/advocate/pkg/advocate"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file, empty for defaults")
	envFile := flag.String("env", ".env", "optional dotenv file with provider secrets")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintln(os.Stderr, "advocate:", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			configPath = ""
		}
	}
	cfg, err := advocate.LoadConfig(configPath)
	if err != nil {
		return err
	}

	providers := advocate.NewProviderRegistry()
	advocate.RegisterDefaults(providers)
	app, err := advocate.NewApp(advocate.AppOptions{
		Config:    cfg,
		Providers: providers,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}
