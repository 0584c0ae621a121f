// Package cmd implements the candy command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deixis/candy"
	"github.com/deixis/candy/internal/config"
	"github.com/deixis/candy/internal/logging"
	"github.com/deixis/candy/internal/report"
	"github.com/deixis/candy/internal/workflow"
)

// app holds the state shared by every subcommand.
type app struct {
	cfgPath  string
	logLevel string

	workspace string
	cfg       *config.Config
	store     *report.LRUStore
	log       zerolog.Logger
}

// NewRootCmd builds the candy command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "candy",
		Short:         "candy - run commands and act on every line they print",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store != nil {
				return a.store.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "Config file path (default: nearest .candy.yaml, .candy.yml or .candy.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (default from config)")

	root.AddCommand(
		a.runCmd(),
		a.inspectCmd(),
		a.historyCmd(),
		a.requireCmd(),
		a.mcpCmd(),
		versionCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code. A
// failing task's own exit status is passed through.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "candy:", err)
	if code, ok := candy.ExitCodeOf(err); ok && code > 0 {
		return code
	}
	return 1
}

func (a *app) init(cmd *cobra.Command) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	a.workspace = wd

	var loaded *config.LoadResult
	if a.cfgPath != "" {
		loaded, err = config.LoadFile(a.cfgPath)
	} else {
		loaded, err = config.Load(wd)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = loaded.Config

	level := a.cfg.LogLevel()
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.log = logging.New(cmd.ErrOrStderr(), level, true)
	if loaded.Path != "" {
		a.log.Debug().Str("path", loaded.Path).Msg("config loaded")
	}
	cmd.SetContext(a.log.WithContext(cmd.Context()))
	return nil
}

// openStore opens the configured run store on first use.
func (a *app) openStore() (report.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := report.Open(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	a.store = s
	return s, nil
}

func (a *app) engine() (*workflow.Engine, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return &workflow.Engine{Config: a.cfg, Store: s, Dir: a.workspace}, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), candy.Version)
			return nil
		},
	}
}

func writeLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
