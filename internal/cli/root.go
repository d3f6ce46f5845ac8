// Package cli implements the rbacflow command-line surface: flag
// decoding via cobra/pflag, optional config merging via viper, and an
// interactive huh-driven wizard when no arguments are given at all. None
// of this package is part of the analysis core; it exists to drive
// pkg/analysis and pkg/report from a terminal.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pthm/rbacflow/internal/diag"
	"github.com/pthm/rbacflow/internal/flow"
	"github.com/pthm/rbacflow/internal/graph"
	"github.com/pthm/rbacflow/internal/policyio"
	"github.com/pthm/rbacflow/internal/render"
	"github.com/pthm/rbacflow/internal/store"
	"github.com/pthm/rbacflow/internal/version"
	"github.com/pthm/rbacflow/pkg/analysis"
	"github.com/pthm/rbacflow/pkg/report"
)

var (
	admin             bool
	bestCase          bool
	entryPoints       string
	targets           string
	learnConfig       string
	processedPolicy   string
	debug             bool
	showVersion       bool
	format            string
	dbDSN             string
	strictTransitions bool
)

var rootCmd = &cobra.Command{
	Use:          "rbacflow [policy]",
	Short:        "Find information-flow vulnerabilities in a Grsecurity-style RBAC policy",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVarP(&admin, "admin", "a", false, "do not blacklist administrative roles")
	flags.BoolVarP(&bestCase, "bestcase", "b", false, "assume no set-UID/GID binaries")
	flags.StringVarP(&entryPoints, "entrypoints", "e", "", "entry-points file")
	flags.StringVarP(&targets, "targets", "t", "", "targets file")
	flags.StringVarP(&learnConfig, "learnconfig", "l", "", "extract targets from a learn-config file")
	flags.StringVarP(&processedPolicy, "processedpolicy", "P", "", "dump preprocessed policy to this path")
	flags.BoolVarP(&debug, "debug", "d", false, "enable verbose diagnostics")
	flags.BoolVarP(&showVersion, "version", "v", false, "print version and exit")
	flags.StringVar(&format, "format", "text", "output format: text, yaml, or json")
	flags.StringVar(&dbDSN, "db-dsn", "", "optional PostgreSQL DSN to persist findings")
	flags.BoolVar(&strictTransitions, "strict-transitions", false, "treat conflicting user/group transition clauses on one subject as a parse error")

	_ = viper.BindPFlags(flags)
	viper.SetConfigName(".rbacflow")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		return nil
	}
	// viper resolves each bound flag as: explicit flag > config file > default.
	admin = viper.GetBool("admin")
	bestCase = viper.GetBool("bestcase")
	entryPoints = viper.GetString("entrypoints")
	targets = viper.GetString("targets")
	learnConfig = viper.GetString("learnconfig")
	processedPolicy = viper.GetString("processedpolicy")
	debug = viper.GetBool("debug")
	format = viper.GetString("format")
	dbDSN = viper.GetString("db-dsn")
	strictTransitions = viper.GetBool("strict-transitions")
	diag.SetDebug(debug)

	var policyPath string
	switch {
	case len(args) == 1:
		policyPath = args[0]
	case viper.GetString("policy") != "":
		policyPath = viper.GetString("policy")
	case cmd.Flags().NFlag() == 0:
		var err error
		policyPath, err = runWizard()
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("policy path is required")
	}

	if processedPolicy != "" {
		text, err := analysis.Preprocess(policyPath)
		if err != nil {
			diag.Fatal(err)
		}
		if err := os.WriteFile(processedPolicy, []byte(text), 0o644); err != nil {
			diag.Fatal(fmt.Errorf("writing processed policy: %w", err))
		}
	}

	a, err := analysis.Build(policyPath, analysis.Options{
		Options:           graph.Options{Admin: admin, BestCase: bestCase},
		StrictTransitions: strictTransitions,
	})
	if err != nil {
		diag.Fatal(err)
	}

	allTargets, err := loadTargets()
	if err != nil {
		diag.Fatal(err)
	}

	var entries []policyio.EntryLine
	if entryPoints != "" {
		entries, err = policyio.ParseEntryPoints(entryPoints)
		if err != nil {
			diag.Fatal(err)
		}
	}

	renderer := render.New(isatty.IsTerminal(os.Stdout.Fd()))
	var findings []report.Finding
	for _, el := range entries {
		if el.End != nil {
			res := a.IndirectFlow(el.Start, *el.End, el.Target)
			findings = append(findings, report.FromIndirect(renderer, res)...)
			continue
		}
		for _, target := range allTargets {
			findings = append(findings, report.FromDirect(renderer, a.DirectFlow(el.Start, target, flow.ModeRead))...)
			findings = append(findings, report.FromDirect(renderer, a.DirectFlow(el.Start, target, flow.ModeWrite))...)
		}
		findings = append(findings, report.FromWriteExecute(renderer, a.WriteExecuteFlow(el.Start))...)
	}

	if err := emit(cmd, findings); err != nil {
		diag.Fatal(err)
	}

	if dbDSN != "" {
		if err := persist(policyPath, findings); err != nil {
			diag.Fatal(err)
		}
	}
	return nil
}

func loadTargets() ([]string, error) {
	var out []string
	if targets != "" {
		t, err := policyio.ParseTargets(targets)
		if err != nil {
			return nil, err
		}
		out = append(out, t...)
	}
	if learnConfig != "" {
		t, err := policyio.ParseLearnConfig(learnConfig)
		if err != nil {
			return nil, err
		}
		out = append(out, t...)
	}
	return out, nil
}

func emit(cmd *cobra.Command, findings []report.Finding) error {
	switch format {
	case "yaml":
		b, err := report.YAML(findings)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
	case "json":
		b, err := report.JSON(findings)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
	default:
		fmt.Fprint(cmd.OutOrStdout(), report.Text(findings))
	}
	return nil
}

func persist(policyPath string, findings []report.Finding) error {
	ctx := context.Background()
	s, err := store.Open(ctx, dbDSN)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.ApplyDDL(ctx); err != nil {
		return err
	}
	_, err = s.SaveRun(ctx, policyPath, findings)
	return err
}
