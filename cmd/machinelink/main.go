package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ghalamif/machinelink"
	"github.com/ghalamif/machinelink/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "check":
		err = checkCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		logging.NewDefault().Fatal("command failed", zap.String("command", cmd), zap.Error(err))
	}
}

// configFlag registers --config. An empty path reads the environment instead.
func configFlag(fs *pflag.FlagSet) *string {
	return fs.StringP("config", "c", "", "Path to a YAML configuration file (default: environment variables)")
}

func loadConfig(path string) (*machinelink.Config, error) {
	if path == "" {
		return machinelink.LoadEnvConfig()
	}
	return machinelink.LoadConfig(path)
}

func runCommand(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt, err := machinelink.NewRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}

func checkCommand(args []string) error {
	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	cfgPath := configFlag(fs)
	timeout := fs.Duration("timeout", 5*time.Second, "Give up on the device after this long")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt, err := machinelink.NewRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	checkErr := rt.Check(ctx)
	if err := errors.Join(checkErr, rt.Shutdown(ctx)); err != nil {
		return err
	}
	fmt.Printf("%s interface check passed\n", cfg.Mode)
	return nil
}

func validateCommand(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	source := *cfgPath
	if source == "" {
		source = "environment"
	}
	fmt.Printf("config from %s looks good: mode=%s sink=%s bucket=%s\n", source, cfg.Mode, cfg.Sink.Kind, cfg.Bucket())
	return nil
}

func statsCommand(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: *interval}
	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, client, *url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	snap, err := scrapeSnapshot(resp.Body)
	if err != nil {
		return err
	}
	fmt.Printf("[%s] %s\n", time.Now().Format(time.RFC3339), snap)
	return nil
}

func printUsage() {
	fmt.Printf(`machinelink

Usage:
  machinelink <command> [flags]

Commands:
  run        Acquire from the configured source and forward batches to the sink
  check      Verify the device link (check command and expected reply) and exit
  validate   Load and validate the configuration without starting anything
  stats      Poll the Prometheus metrics endpoint and print live counters

Configuration is read from --config when given, otherwise from environment
variables such as INFLUXDB_HOST, DEMO_MACHINE_ADDRESS and MACHINELINK_INTERVAL.

Examples:
  machinelink run --config ./data/config.yaml
  machinelink check --config ./data/config.yaml --timeout 3s
  machinelink validate
  machinelink stats --url http://localhost:9100/metrics --interval 1s
`)
}
