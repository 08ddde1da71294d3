package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var maxCommitsFlag int

var rootCmd = &cobra.Command{
	Use:           "commitscore",
	Short:         "Score kernel commits for impact and quality",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <version-range>",
	Short: "Score every matching commit in a version range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunAnalyze(cmd.Context(), LoadConfig(), args[0])
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair <version-range>",
	Short: "Re-run the classifier over registered failed commits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunRepairPass(cmd.Context(), LoadConfig(), args[0])
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <version-range>",
	Short: "Regenerate the summary report from an existing ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunSummary(LoadConfig(), args[0])
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <version-range>",
	Short: "Re-run analyze and repair on a cron schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunWatch(cmd.Context(), LoadConfig(), args[0])
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentFlags().IntVar(&maxCommitsFlag, "max-commits", 0, "cap on commits to analyze (0 = no cap)")
	rootCmd.AddCommand(analyzeCmd, repairCmd, summaryCmd, watchCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// newDispatcher wires the pipeline from config. The history store is
// optional; the run proceeds without it if sqlite cannot be opened.
func newDispatcher(cfg Config, ledger *Ledger) *Dispatcher {
	var keywords *KeywordTable
	if cfg.KeywordTablePath != "" {
		t, err := LoadKeywordTable(cfg.KeywordTablePath)
		if err != nil {
			log.Fatalf("Failed to load keyword table: %v", err)
		}
		keywords = t
	}

	var history *HistoryStore
	if cfg.DBPath != "" {
		h, err := OpenHistory(cfg.DBPath)
		if err != nil {
			log.Printf("history db unavailable, continuing without it: %v", err)
		} else {
			history = h
		}
	}

	return &Dispatcher{
		Classifier:    NewAnthropicClassifier(cfg),
		Ledger:        ledger,
		Keywords:      keywords,
		RepoPath:      cfg.RepoPath,
		Workers:       cfg.Workers,
		MaxAttempts:   cfg.MaxAttempts,
		TrackDegraded: cfg.TrackDegraded,
		History:       history,
	}
}

// RunAnalyze scores every commit in the range and writes the ledger, the
// failed-commit register, and the summary report.
func RunAnalyze(ctx context.Context, cfg Config, versionRange string) error {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	commits, err := ListCommits(ctx, cfg.RepoPath, versionRange, cfg.AuthorDomains, maxCommitsFlag)
	if err != nil {
		return fmt.Errorf("list commits: %w", err)
	}
	log.Printf("analyze: %d commits in %s", len(commits), versionRange)

	ledger, err := OpenLedger(LedgerPath(cfg.OutputDir, versionRange))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	d := newDispatcher(cfg, ledger)
	if d.History != nil {
		defer d.History.Close()
		if err := d.History.BeginRun("analyze", versionRange, authorFilterLabel(cfg), cfg.Workers); err != nil {
			log.Printf("history: begin run: %v", err)
		}
	}

	counts, failed := d.Run(ctx, commits)

	if err := SaveFailedRegister(FailedPath(cfg.OutputDir, versionRange), failed); err != nil {
		log.Printf("failed register: %v", err)
	}
	if d.History != nil {
		if err := d.History.EndRun(counts); err != nil {
			log.Printf("history: end run: %v", err)
		}
	}

	return finishRun(cfg, ledger, versionRange, counts)
}

// RunRepairPass re-runs the classifier over the failed-commit register and
// merges repaired records into the existing ledger.
func RunRepairPass(ctx context.Context, cfg Config, versionRange string) error {
	ledger, err := OpenLedger(LedgerPath(cfg.OutputDir, versionRange))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	d := newDispatcher(cfg, ledger)
	if d.History != nil {
		defer d.History.Close()
		if err := d.History.BeginRun("repair", versionRange, authorFilterLabel(cfg), cfg.Workers); err != nil {
			log.Printf("history: begin run: %v", err)
		}
	}

	counts, err := RunRepair(ctx, d, cfg.RepoPath, FailedPath(cfg.OutputDir, versionRange))
	if err != nil {
		return err
	}
	if counts.Total == 0 {
		return nil
	}
	if d.History != nil {
		if err := d.History.EndRun(counts); err != nil {
			log.Printf("history: end run: %v", err)
		}
	}

	return finishRun(cfg, ledger, versionRange, counts)
}

// RunSummary rebuilds the summary report from the ledger on disk without
// touching the classifier.
func RunSummary(cfg Config, versionRange string) error {
	ledger, err := OpenLedger(LedgerPath(cfg.OutputDir, versionRange))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	if ledger.Len() == 0 {
		return fmt.Errorf("no ledger records for %s, run analyze first", versionRange)
	}

	records := ledger.Records()
	counts := RunCounts{Total: len(records), Succeeded: len(records)}
	for _, r := range records {
		if r.HasFlag(FlagAgentError) {
			counts.Degraded++
		}
	}

	s := GenerateSummary(records, versionRange, authorFilterLabel(cfg))
	path, err := WriteSummaryFile(s, cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	log.Printf("summary written to %s", path)
	fmt.Println(FormatSummaryText(s, counts))
	return nil
}

func finishRun(cfg Config, ledger *Ledger, versionRange string, counts RunCounts) error {
	s := GenerateSummary(ledger.Records(), versionRange, authorFilterLabel(cfg))
	path, err := WriteSummaryFile(s, cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	log.Printf("summary written to %s", path)

	text := FormatSummaryText(s, counts)
	fmt.Println(text)
	NotifyRunComplete(cfg, text)
	return nil
}

func authorFilterLabel(cfg Config) string {
	if len(cfg.AuthorDomains) == 0 {
		return "all"
	}
	label := cfg.AuthorDomains[0]
	for _, d := range cfg.AuthorDomains[1:] {
		label += "," + d
	}
	return label
}
