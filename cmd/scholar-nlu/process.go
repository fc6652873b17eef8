// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/scholar-nlu/internal/dialogue"
	"github.com/pdiddy/scholar-nlu/internal/llm"
	"github.com/pdiddy/scholar-nlu/internal/nlu"
	"github.com/pdiddy/scholar-nlu/internal/pipeline"
	"github.com/pdiddy/scholar-nlu/pkg/types"
)

var processCmd = &cobra.Command{
	Use:   "process [message...]",
	Short: "Run understanding for one message and print the result",
	Long: `Process classifies the message, extracts entities, enriches them from the
user's dialogue context, and prints the understanding result as JSON.

With --record the processed turn is appended to the user's context, so a
subsequent invocation sees it as conversation history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		record, _ := cmd.Flags().GetBool("record")
		message := strings.Join(args, " ")

		p, log, err := buildPipeline(cmd)
		if err != nil {
			return err
		}
		defer p.Close(cmd.Context())
		defer log.Sync()

		res, err := p.Process(cmd.Context(), userID, message)
		if err != nil {
			return fmt.Errorf("processing message: %w", err)
		}

		if record {
			if err := p.UpdateContext(cmd.Context(), userID, message, res, "", nil); err != nil {
				return fmt.Errorf("recording turn: %w", err)
			}
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

func init() {
	processCmd.Flags().Int64("user", 0, "user identifier owning the dialogue context")
	processCmd.Flags().Bool("record", false, "append the processed turn to the user's context")

	rootCmd.AddCommand(processCmd)
}

// buildPipeline wires the understanding components from the runtime
// configuration. The caller owns the returned pipeline and must close it.
func buildPipeline(cmd *cobra.Command) (*pipeline.Pipeline, *zap.Logger, error) {
	cfg := loadAppConfig()

	log, err := newLogger(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	vocab := types.DefaultVocabulary()
	if cfg.VocabularyPath != "" {
		vocab, err = types.LoadVocabulary(cfg.VocabularyPath)
		if err != nil {
			return nil, nil, err
		}
	}

	repo, err := dialogue.NewSQLiteRepository(cfg.Context.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening context database: %w", err)
	}
	store, err := dialogue.NewStore(cmd.Context(), repo, cfg.Context, log)
	if err != nil {
		return nil, nil, err
	}

	backend := llm.NewOllamaClient(cfg.LLM, log)
	p := pipeline.New(
		nlu.NewClassifier(backend, vocab, log),
		nlu.NewExtractor(backend, vocab, log),
		store, vocab, cfg.Context, log)
	return p, log, nil
}
