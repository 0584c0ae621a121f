package cmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deixis/candy"
	"github.com/deixis/candy/internal/report"
	"github.com/deixis/candy/internal/workflow"
)

func (a *app) runCmd() *cobra.Command {
	var (
		stopOn string
		dir    string
		env    []string
		quiet  bool
	)
	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Run a command, echo its output and record it",
		Long: `Run a command, echo every line it prints and record the run.

The words after -- are joined with single spaces and split again the same way,
so no shell quoting is applied. With --stop-on, candy stops reading at the first
line matching the pattern, waits for the process to exit and reports the match.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := workflow.Request{
				Command: strings.Join(args, " "),
				Dir:     dir,
			}
			if stopOn != "" {
				re, err := regexp.Compile(stopOn)
				if err != nil {
					return fmt.Errorf("--stop-on: %w", err)
				}
				req.StopOn = re
			}
			vars, err := parseEnv(env)
			if err != nil {
				return err
			}
			req.Env = vars

			if !quiet {
				out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
				req.Echo = func(l candy.Log) {
					if l.Stream == candy.Stderr {
						fmt.Fprintln(errOut, l.Line)
					} else {
						fmt.Fprintln(out, l.Line)
					}
				}
			}

			e, err := a.engine()
			if err != nil {
				return err
			}
			rec, err := e.Run(cmd.Context(), req)
			if rec != nil {
				a.log.Info().
					Str("run_id", rec.ID).
					Str("kind", string(rec.Kind)).
					Str("command", rec.Command).
					Str("value", rec.Value).
					Msg("run recorded")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&stopOn, "stop-on", "", "Stop reading at the first line matching this regular expression")
	cmd.Flags().StringVar(&dir, "dir", "", "Working directory for the command")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "Environment variable KEY=VALUE (repeatable)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not echo output")
	return cmd
}

func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--env %q: want KEY=VALUE", p)
		}
		vars[k] = v
	}
	return vars, nil
}

func (a *app) inspectCmd() *cobra.Command {
	var stream, grep string
	cmd := &cobra.Command{
		Use:   "inspect <run-id>",
		Short: "Print the recorded output of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			rec, err := store.Load(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if grep != "" {
				matches, err := report.Grep(rec, stream, grep)
				if err != nil {
					return err
				}
				for _, m := range matches {
					fmt.Fprintln(w, m)
				}
				return nil
			}
			lines, err := report.Lines(rec, stream)
			if err != nil {
				return err
			}
			writeLines(w, lines)
			return nil
		},
	}
	cmd.Flags().StringVar(&stream, "stream", "", "stdout or stderr (default both)")
	cmd.Flags().StringVar(&grep, "grep", "", "Only print lines matching this regular expression")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			recs, err := store.List(limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range recs {
				fmt.Fprintf(w, "%s  %s  %-12s  %s\n", r.ID, r.Started.Format("2006-01-02 15:04:05"), r.Kind, r.Command)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func (a *app) requireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "require <command> [constraint]",
		Short: "Check the version a command reports against a semver constraint",
		Example: `  candy require "rustc --version" "^1.70"
  candy require "go version" ">= 1.22"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			constraint := ""
			if len(args) == 2 {
				constraint = args[1]
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			res, err := e.Version(cmd.Context(), args[0], constraint)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Version)
			return nil
		},
	}
}
