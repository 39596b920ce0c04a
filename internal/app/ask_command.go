package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verifiable-ai/onchainqa/internal/agent"
	"github.com/verifiable-ai/onchainqa/internal/chain"
	"github.com/verifiable-ai/onchainqa/internal/executor"
	"github.com/verifiable-ai/onchainqa/internal/llm"
	"github.com/verifiable-ai/onchainqa/internal/registry"
	"github.com/verifiable-ai/onchainqa/internal/resolver"
	"github.com/verifiable-ai/onchainqa/internal/trace"
	"github.com/verifiable-ai/onchainqa/internal/tracestore"
)

func (s *runtimeState) newAskCommand() *cobra.Command {
	var local bool
	var submit bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question about ERC-20 token state with a verifiable trace",
		Long: "Ask a natural-language question about a supported token or any ERC-20\n" +
			"contract address. The full execution is recorded in a hash-chained trace\n" +
			"and stored for independent verification.\n\n" +
			"Examples:\n  " + strings.Join(registry.ExampleQuestions(), "\n  "),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			// The deadline covers the whole pipeline: model parse, the
			// retried chain reads and the trace upload.
			ctx, cancel := context.WithTimeout(context.Background(), pipelineDeadline(s.settings.Timeout))
			defer cancel()

			qa, cleanup, err := s.buildAgent(ctx, local)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := qa.Execute(ctx, question)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Answer)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "trace id:    %s\n", result.TraceID)
			fmt.Fprintf(out, "commitment:  %s\n", result.CommitmentHash)
			if result.IPFSHash != "" {
				fmt.Fprintf(out, "stored at:   %s\n", result.IPFSHash)
			}
			if submit {
				tx, err := qa.SubmitCommitment(result.CommitmentHash, result.IPFSHash)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "submit tx:   %s\n", tx)
			}
			if s.settings.Debug {
				payload, err := trace.MarshalDocument(result.Trace)
				if err == nil {
					fmt.Fprintln(out)
					fmt.Fprintln(out, string(payload))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Store the trace in the local archive instead of IPFS")
	cmd.Flags().BoolVar(&submit, "submit", false, "Submit the commitment (simulated) and print the transaction hash")
	return cmd
}

// buildAgent constructs the full pipeline from settings. The returned
// cleanup closes the RPC connection and, when --local is set, the
// archive.
func (s *runtimeState) buildAgent(ctx context.Context, local bool) (*agent.Agent, func(), error) {
	eth, err := chain.Dial(ctx, s.settings.RPCURL)
	if err != nil {
		return nil, nil, err
	}

	completer := llm.NewClient(llm.Config{
		Endpoint:  s.settings.LLMEndpoint,
		APIKey:    s.settings.LLMAPIKey,
		Model:     s.settings.LLMModel,
		MaxTokens: s.settings.LLMMaxTokens,
		Timeout:   s.settings.Timeout,
	})
	res := resolver.New(completer, s.log)

	cache := chain.NewCallCache(eth, s.log, chain.WithTTL(s.settings.CacheTTL))
	policy := executor.DefaultRetryPolicy()
	if s.settings.Retries >= 0 {
		policy.MaxAttempts = s.settings.Retries + 1
	}
	exec := executor.New(cache, s.log, executor.WithPolicy(policy))

	var store tracestore.Store
	cleanup := func() { eth.Close() }
	if local {
		archive, err := tracestore.OpenArchive(s.settings.ArchivePath, s.settings.ArchiveLockPath)
		if err != nil {
			eth.Close()
			return nil, nil, err
		}
		store = archive
		cleanup = func() {
			_ = archive.Close()
			eth.Close()
		}
	} else {
		store = tracestore.NewIPFSStore(s.settings.IPFSAPIURL, s.settings.Timeout, s.settings.Retries)
	}

	return agent.New(s.settings.AgentID, res, exec, store, s.log), cleanup, nil
}

func pipelineDeadline(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 2 * time.Minute
	}
	// One parse call, up to three chain reads plus a decimals read, one
	// upload.
	return 6 * timeout
}
