// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/scholar-nlu/internal/dialogue"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Inspect and manage per-user dialogue contexts",
}

var contextShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a user's dialogue context as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")

		store, log, err := buildStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())
		defer log.Sync()

		uctx, err := store.GetContext(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("loading context: %w", err)
		}

		out, err := json.MarshalIndent(uctx, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

var contextClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset a user's dialogue context",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")

		store, log, err := buildStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close(cmd.Context())
		defer log.Sync()

		if err := store.ClearContext(cmd.Context(), userID); err != nil {
			return fmt.Errorf("clearing context: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Context cleared for user %d\n", userID)
		return nil
	},
}

func init() {
	contextShowCmd.Flags().Int64("user", 0, "user identifier")
	contextClearCmd.Flags().Int64("user", 0, "user identifier")

	contextCmd.AddCommand(contextShowCmd)
	contextCmd.AddCommand(contextClearCmd)
	rootCmd.AddCommand(contextCmd)
}

// buildStore opens just the dialogue store, without the model-backed
// components.
func buildStore(cmd *cobra.Command) (*dialogue.Store, *zap.Logger, error) {
	cfg := loadAppConfig()

	log, err := newLogger(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	repo, err := dialogue.NewSQLiteRepository(cfg.Context.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening context database: %w", err)
	}
	store, err := dialogue.NewStore(cmd.Context(), repo, cfg.Context, log)
	if err != nil {
		return nil, nil, err
	}
	return store, log, nil
}
