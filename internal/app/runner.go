// Package app wires the CLI: configuration loading, command tree,
// dependency construction and exit-code mapping.
package app

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/verifiable-ai/onchainqa/internal/config"
	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
	"github.com/verifiable-ai/onchainqa/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	log      *logrus.Logger
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	if err == nil {
		return 0
	}
	if err == errVerificationFailed {
		// verify-trace already printed its report; the contract is a
		// bare exit status 1.
		return 1
	}
	err = normalizeRunError(err)
	state.renderError(err)
	return qaerr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Verifiable on-chain question answering for ERC-20 tokens",
		Long: "onchainqa answers natural-language questions about ERC-20 token state\n" +
			"and records every answer in a hash-chained execution trace that anyone\n" +
			"can re-verify from the stored document alone.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "help", "version":
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return qaerr.Wrap(qaerr.CodeConfig, "load configuration", err)
			}
			s.settings = settings

			log := logrus.New()
			log.SetOutput(s.runner.stderr)
			if settings.Debug {
				log.SetLevel(logrus.DebugLevel)
			} else {
				log.SetLevel(logrus.WarnLevel)
			}
			s.log = log
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return qaerr.Wrap(qaerr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.RPCURL, "rpc-url", "", "Chain RPC endpoint")
	cmd.PersistentFlags().StringVar(&s.flags.AgentID, "agent-id", "", "Agent identifier recorded in traces")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Per-request timeout (e.g. 30s)")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per chain read")
	cmd.PersistentFlags().BoolVar(&s.flags.Debug, "debug", false, "Enable debug logging and full trace output")

	cmd.AddCommand(s.newAskCommand())
	cmd.AddCommand(s.newVerifyCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				cmd.Println(version.Long())
				return
			}
			cmd.Println(version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) renderError(err error) {
	_, _ = io.WriteString(s.runner.stderr, version.CLIName+": "+qaerr.UserMessage(err)+"\n")
	if s.settings.Debug {
		_, _ = io.WriteString(s.runner.stderr, "cause: "+err.Error()+"\n")
	}
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := qaerr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return qaerr.Wrap(qaerr.CodeUsage, "invalid command input", err)
	}
	return qaerr.Wrap(qaerr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
