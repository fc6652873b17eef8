// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the scholar-nlu CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/scholar-nlu/internal/secrets"
	"github.com/pdiddy/scholar-nlu/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API tokens loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the scholar-nlu CLI.
var rootCmd = &cobra.Command{
	Use:   "scholar-nlu",
	Short: "Conversational understanding for the scholar assistant",
	Long: `scholar-nlu is the understanding engine behind the scholar assistant bot.
It classifies each incoming message into an intent, extracts search and
citation entities, and maintains per-user dialogue context so follow-up
messages inherit the topic and article references of the conversation.

A local language model (Ollama) drives classification and extraction when
available; deterministic keyword and pattern rules take over when it is not.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./scholar-nlu.yaml or ~/.config/scholar-nlu/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "log at debug level")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("scholar-nlu")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "scholar-nlu"))
		}
	}

	viper.SetEnvPrefix("SCHOLAR_NLU")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadAppConfig assembles the runtime configuration from defaults, the
// config file and the environment.
func loadAppConfig() types.Config {
	cfg := types.DefaultConfig()

	if v := viper.GetString("llm.base_url"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := viper.GetString("llm.model"); v != "" {
		cfg.LLM.Model = v
	}
	if v := viper.GetDuration("llm.timeout"); v > 0 {
		cfg.LLM.Timeout = v
	}
	cfg.LLM.APIToken = secretDefault("ollama-api-token", viper.GetString("llm.api_token"))

	if v := viper.GetString("context.db_path"); v != "" {
		cfg.Context.DBPath = v
	}
	if v := viper.GetInt("context.cache_ttl_minutes"); v > 0 {
		cfg.Context.CacheTTLMinutes = v
	}
	if v := viper.GetInt("context.cleanup_interval_minutes"); v > 0 {
		cfg.Context.CleanupIntervalMinutes = v
	}
	if v := viper.GetInt("context.max_cache_size"); v > 0 {
		cfg.Context.MaxCacheSize = v
	}
	if v := viper.GetInt("context.max_history_size"); v > 0 {
		cfg.Context.MaxHistorySize = v
	}
	if v := viper.GetInt("context.context_window_hours"); v > 0 {
		cfg.Context.ContextWindowHours = v
	}

	if v := viper.GetString("vocabulary_path"); v != "" {
		cfg.VocabularyPath = v
	}
	return cfg
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
