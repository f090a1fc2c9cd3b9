package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dealdesk/verdict/internal/fingerprint"
	"github.com/dealdesk/verdict/internal/memory"
	"github.com/dealdesk/verdict/internal/policy"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check verdict configuration and storage health",
	Long: `Run health checks to diagnose common configuration issues.

This command checks:
- Database accessibility (open + read/write roundtrip)
- Policy set loads and validates
- Every persona resolves through the resolver
- Dedup window configuration from the environment

Exit codes:
  0 - All checks passed
  1 - One or more checks failed
  2 - Critical failures that prevent verdict from running`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running verdict health checks...\n\n")

		var failures []string
		var criticalFailures []string
		ctx := cmd.Context()

		// Check 1: Storage accessibility
		fmt.Printf("%s Storage\n", cyan("→"))
		st, err := openStorage(ctx)
		if err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("Cannot open database: %v", err))
			fmt.Printf("  %s Cannot open database\n", red("✗"))
			if verbose {
				fmt.Printf("    Error: %v\n", err)
			}
		} else {
			defer st.Close()
			fmt.Printf("  %s Database opened\n", green("✓"))
			if err := st.SetConfig(ctx, "doctor_probe", "ok"); err != nil {
				criticalFailures = append(criticalFailures, fmt.Sprintf("Database not writable: %v", err))
				fmt.Printf("  %s Database not writable\n", red("✗"))
			} else if v, err := st.GetConfig(ctx, "doctor_probe"); err != nil || v != "ok" {
				criticalFailures = append(criticalFailures, "Database read-after-write failed")
				fmt.Printf("  %s Read-after-write failed\n", red("✗"))
			} else {
				fmt.Printf("  %s Read/write roundtrip\n", green("✓"))
			}
		}

		// Check 2: Policy set
		fmt.Printf("%s Policy set\n", cyan("→"))
		set, err := loadPolicySet()
		if err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("Policy set failed to load: %v", err))
			fmt.Printf("  %s Policy set failed to load\n", red("✗"))
			if verbose {
				fmt.Printf("    Error: %v\n", err)
			}
		} else {
			fmt.Printf("  %s Loaded %d personas\n", green("✓"), len(set.Personas))

			resolver, err := policy.NewResolver(set)
			if err != nil {
				criticalFailures = append(criticalFailures, fmt.Sprintf("Policy set invalid: %v", err))
				fmt.Printf("  %s Policy set invalid\n", red("✗"))
				if verbose {
					fmt.Printf("    Error: %v\n", err)
				}
			} else {
				ok := true
				for _, p := range set.Personas {
					if _, err := resolver.Resolve(p.Vertical, p.SubVertical, p.Region); err != nil {
						failures = append(failures, fmt.Sprintf("Persona %s does not resolve: %v", p.PersonaKey, err))
						fmt.Printf("  %s Persona %s does not resolve\n", red("✗"), p.PersonaKey)
						ok = false
					}
				}
				if ok {
					fmt.Printf("  %s All personas resolve\n", green("✓"))
				}
			}
		}

		// Check 3: Dedup configuration
		fmt.Printf("%s Dedup configuration\n", cyan("→"))
		if cfg, err := fingerprint.ConfigFromEnv(); err != nil {
			failures = append(failures, fmt.Sprintf("Invalid dedup configuration: %v", err))
			fmt.Printf("  %s Invalid dedup configuration\n", red("✗"))
			if verbose {
				fmt.Printf("    Error: %v\n", err)
			}
		} else {
			fmt.Printf("  %s Default window %v\n", green("✓"), cfg.DefaultWindow)
		}

		// Check 4: Memory sweep
		if st != nil {
			fmt.Printf("%s Memory store\n", cyan("→"))
			if purged, err := memory.NewStore(st).PurgeExpired(ctx); err != nil {
				failures = append(failures, fmt.Sprintf("Memory sweep failed: %v", err))
				fmt.Printf("  %s Sweep failed\n", red("✗"))
			} else {
				fmt.Printf("  %s Sweep ok (%d expired entries purged)\n", green("✓"), purged)
			}
		}

		fmt.Println()
		switch {
		case len(criticalFailures) > 0:
			fmt.Printf("%s Critical failures prevent verdict from running\n", red("✗"))
			for _, f := range criticalFailures {
				fmt.Printf("  - %s\n", f)
			}
			os.Exit(2)
		case len(failures) > 0:
			fmt.Printf("%s Some checks failed\n", yellow("⚠"))
			for _, f := range failures {
				fmt.Printf("  - %s\n", f)
			}
			os.Exit(1)
		default:
			fmt.Printf("%s All checks passed\n", green("✓"))
		}
	},
}

func init() {
	doctorCmd.Flags().Bool("verbose", false, "show detailed error output")
	rootCmd.AddCommand(doctorCmd)
}
