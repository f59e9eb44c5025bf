package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/thirukkural/pkg/ai"
	"github.com/japaniel/thirukkural/pkg/config"
	"github.com/japaniel/thirukkural/pkg/dataset"
	"github.com/japaniel/thirukkural/pkg/db"
	"github.com/japaniel/thirukkural/pkg/i18n"
	"github.com/japaniel/thirukkural/pkg/ingest"
	"github.com/japaniel/thirukkural/pkg/kural"
	"github.com/japaniel/thirukkural/pkg/prefs"
	"github.com/japaniel/thirukkural/pkg/web"
)

// loadDataset downloads the dataset on first use and loads it.
func (a *app) loadDataset(ctx context.Context, cfg *config.Config) (*kural.Dataset, error) {
	if err := dataset.NewFetcher(a.logger.Named("dataset")).Ensure(ctx, cfg.DataPath, a.sources); err != nil {
		return nil, err
	}
	ds, err := kural.Load(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	a.logger.Info("dataset loaded", zap.String("path", cfg.DataPath), zap.Int("kurals", ds.Len()))
	return ds, nil
}

func (a *app) openDB(cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	return conn, nil
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			ds, err := a.loadDataset(ctx, cfg)
			if err != nil {
				return err
			}
			conn, err := a.openDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			gen, err := a.newGenerator(ctx, cfg, a.logger.Named("gemini"))
			switch {
			case errors.Is(err, ai.ErrMissingAPIKey):
				a.logger.Warn("GEMINI_API_KEY not set; AI explanations and chat are disabled")
				gen = ai.Disabled{}
			case err != nil:
				return err
			}

			srv, err := web.New(web.Options{
				Data:           ds,
				Prefs:          prefs.NewSQL(conn),
				Logger:         a.logger.Named("web"),
				DB:             conn,
				Generator:      gen,
				ChatHistory:    cfg.ChatHistory,
				RequestTimeout: cfg.RequestTimeout,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, cfg.Addr)
		},
	}
}

func newUpdateDataCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update-data",
		Short: "Download the upstream couplets and taxonomy and rewrite the dataset file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			doc, err := dataset.NewFetcher(a.logger.Named("dataset")).Fetch(cmd.Context(), a.sources)
			if err != nil {
				return err
			}
			if _, err := kural.New(doc.Kurals, doc.Chapters); err != nil {
				return fmt.Errorf("validate dataset: %w", err)
			}
			if err := dataset.Write(cfg.DataPath, doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d kurals and %d chapters to %s\n",
				len(doc.Kurals), len(doc.Chapters), cfg.DataPath)
			return nil
		},
	}
}

func newWarmCmd(a *app) *cobra.Command {
	var restart bool
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Generate and store AI explanations for every kural",
		Long: `warm asks the model for an explanation of each kural that has none stored
yet. An interrupted run resumes after the last checkpoint; --restart starts
again from the first kural (stored explanations are still skipped).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			ds, err := a.loadDataset(ctx, cfg)
			if err != nil {
				return err
			}
			gen, err := a.newGenerator(ctx, cfg, a.logger.Named("gemini"))
			if err != nil {
				return err
			}
			conn, err := a.openDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			w := ingest.NewWarmer(conn, ai.NewExplainer(gen, a.logger.Named("explain")), a.logger.Named("warm"))
			w.Workers = cfg.Workers
			w.OnProgress = func(done, total int) {
				if done%50 == 0 || done == total {
					a.logger.Info("warm progress", zap.Int("done", done), zap.Int("total", total))
				}
			}
			if restart {
				if err := w.Reset(); err != nil {
					return err
				}
			}

			stats, err := w.Warm(ctx, ds.All())
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %d, skipped %d, malformed %d, failed %d of %d\n",
				stats.Stored, stats.Skipped, stats.Malformed, stats.Failed, stats.Total)
			return err
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", false, "ignore the checkpoint and start from kural 1")
	return cmd
}

func newExplainCmd(a *app) *cobra.Command {
	var (
		lang   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "explain <number>",
		Short: "Print the AI explanation of one kural",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, ok := i18n.Parse(lang)
			if !ok {
				return fmt.Errorf("unknown language %q", lang)
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			ds, err := a.loadDataset(ctx, cfg)
			if err != nil {
				return err
			}
			k, err := ds.LookupString(args[0])
			if err != nil {
				return err
			}
			gen, err := a.newGenerator(ctx, cfg, a.logger.Named("gemini"))
			if err != nil {
				return err
			}
			exp, err := ai.NewExplainer(gen, a.logger.Named("explain")).Explain(ctx, k)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(exp)
			}
			printExplanation(out, k, exp.For(string(l)))
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", string(i18n.Default), "explanation language (ta or en)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print both languages as JSON")
	return cmd
}

func printExplanation(w io.Writer, k kural.Kural, s ai.Section) {
	fmt.Fprintf(w, "%d. %s\n   %s\n\n", k.Number, k.Line1, k.Line2)
	fmt.Fprintf(w, "%s\n\n%s\n", s.Context, s.Insight)
	for _, m := range s.Modern {
		fmt.Fprintf(w, "  - %s\n", m)
	}
}

func newChatCmd(a *app) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk with the Valluvar persona on the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, ok := i18n.Parse(lang)
			if !ok {
				return fmt.Errorf("unknown language %q", lang)
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			gen, err := a.newGenerator(ctx, cfg, a.logger.Named("gemini"))
			if err != nil {
				return err
			}
			bundle, err := i18n.Load()
			if err != nil {
				return err
			}
			chat := ai.NewChat(gen, a.logger.Named("chat"))
			if cfg.ChatHistory > 0 {
				chat.MaxHistory = cfg.ChatHistory
			}
			failed := bundle.T(l, ai.MsgChatFailed)
			return runChat(ctx, chat, l, failed, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&lang, "lang", string(i18n.English), "reply language (ta or en)")
	return cmd
}

// runChat reads one message per line until EOF or "exit".
func runChat(ctx context.Context, chat *ai.Chat, lang i18n.Lang, failed string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Valluvar: %s\n", ai.Greeting)
	var history []ai.Message
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		reply, err := chat.Reply(ctx, history, line, string(lang))
		if errors.Is(err, ai.ErrMissingAPIKey) {
			return err
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Valluvar: %s\n", failed)
			continue
		}
		fmt.Fprintf(out, "Valluvar: %s\n", reply)
		history = append(history,
			ai.Message{Role: ai.RoleUser, Text: line},
			ai.Message{Role: ai.RoleModel, Text: reply})
	}
}
