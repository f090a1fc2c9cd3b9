// verdict is the deal evaluation service: a deterministic scoring core with
// duplicate-action detection and history advisories.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dealdesk/verdict/internal/policy"
	"github.com/dealdesk/verdict/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "verdict",
	Short: "Deterministic deal evaluation engine",
	Long: `Verdict evaluates deals against versioned, per-vertical scoring policies.

Every evaluation is deterministic: identical input produces an identical
decision, score, and reasoning. Duplicate actions are detected by content
fingerprint, and near-duplicate history surfaces as non-blocking advisories.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("debug") {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "path to the verdict database (default .verdict/verdict.db)")
	rootCmd.PersistentFlags().String("policy-file", "", "load the policy set from a YAML file instead of the embedded set")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	viper.SetEnvPrefix("VERDICT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("policy-file", rootCmd.PersistentFlags().Lookup("policy-file"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// openStorage opens the configured database backend
func openStorage(ctx context.Context) (storage.Storage, error) {
	cfg := storage.DefaultConfig()
	if path := viper.GetString("db"); path != "" {
		cfg.Path = path
	}
	return storage.NewStorage(ctx, cfg)
}

// loadPolicySet loads the policy set from --policy-file when given,
// otherwise the embedded set.
func loadPolicySet() (*policy.PolicySet, error) {
	if path := viper.GetString("policy-file"); path != "" {
		return policy.LoadFile(path)
	}
	return policy.LoadEmbedded()
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
