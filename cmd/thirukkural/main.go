package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/japaniel/thirukkural/pkg/ai"
	"github.com/japaniel/thirukkural/pkg/config"
	"github.com/japaniel/thirukkural/pkg/dataset"
)

// app carries the flags and shared state of one invocation.
type app struct {
	configPath string
	addr       string
	dataPath   string
	dbPath     string
	verbose    bool
	dev        bool

	logger  *zap.Logger
	sources dataset.Sources
	// newGenerator builds the AI backend; tests swap it for a stub.
	newGenerator func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ai.Generator, error)
}

func newApp() *app {
	return &app{
		sources: dataset.DefaultSources(),
		newGenerator: func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ai.Generator, error) {
			g, err := ai.NewGemini(ctx, cfg.APIKey, cfg.Models, logger)
			if err != nil {
				return nil, err
			}
			logger.Info("gemini ready", zap.Strings("models", g.Models()))
			return g, nil
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(newApp(), os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app, in io.Reader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "thirukkural",
		Short: "Browse, search and reflect on the Thirukkural",
		Long: `thirukkural serves the 1330 couplets of Thiruvalluvar as a bilingual
Tamil/English site, with AI explanations and a Valluvar chat persona
backed by Gemini when GEMINI_API_KEY is set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return nil
			}
			cfg := zap.NewProductionConfig()
			if a.dev {
				cfg = zap.NewDevelopmentConfig()
			}
			if a.verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "thirukkural.yaml", "path to the YAML config file")
	pf.StringVar(&a.addr, "addr", "", "listen address (overrides config)")
	pf.StringVar(&a.dataPath, "data", "", "path to the kural dataset (overrides config)")
	pf.StringVar(&a.dbPath, "db", "", "path to the SQLite database (overrides config)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&a.dev, "dev", false, "human-readable development logging")

	root.AddCommand(
		newServeCmd(a),
		newUpdateDataCmd(a),
		newWarmCmd(a),
		newExplainCmd(a),
		newChatCmd(a),
	)
	return root
}

// loadConfig reads the config file and environment, then applies the flags.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.addr != "" {
		cfg.Addr = a.addr
	}
	if a.dataPath != "" {
		cfg.DataPath = a.dataPath
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.dev {
		cfg.Dev = true
	}
	return cfg, cfg.Validate()
}
