package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dealdesk/verdict/internal/policy"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <vertical> <sub_vertical> <region>",
	Short: "Resolve a vertical combination to its persona",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		set, err := loadPolicySet()
		if err != nil {
			return fmt.Errorf("failed to load policy set: %w", err)
		}
		resolver, err := policy.NewResolver(set)
		if err != nil {
			return err
		}
		res, err := resolver.Resolve(args[0], args[1], args[2])
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s\n", cyan("Persona:"), green(res.PersonaKey))
		fmt.Printf("%s %s\n", cyan("Persona ID:"), res.PersonaID)
		fmt.Printf("%s %s\n", cyan("Policy version:"), res.PolicyVersion)
		fmt.Printf("%s %d factors, %d edge-case rules\n", cyan("Policy:"),
			len(res.Policy.Factors), len(res.Policy.EdgeCases))
		return nil
	},
}

func init() {
	resolveCmd.Flags().Bool("json", false, "emit the resolution as JSON")
	rootCmd.AddCommand(resolveCmd)
}
