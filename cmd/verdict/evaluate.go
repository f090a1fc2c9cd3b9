package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dealdesk/verdict/internal/engine"
	"github.com/dealdesk/verdict/internal/policy"
	"github.com/dealdesk/verdict/internal/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a deal from a JSON file",
	Long: `Run a one-shot evaluation of a deal against the configured policies.

The deal file holds the entity fields the persona's policy declares, e.g.:

  {"arr": 1000000, "gross_margin": 0.85, "customer_count": 50,
   "largest_customer_revenue_share": 0.10, "cash_flow_trend": "positive"}

Evaluation here is pure: nothing is recorded, so repeated runs never trip
duplicate detection. Use the HTTP API for recorded evaluations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		vertical, _ := cmd.Flags().GetString("vertical")
		subVertical, _ := cmd.Flags().GetString("sub-vertical")
		region, _ := cmd.Flags().GetString("region")
		asJSON, _ := cmd.Flags().GetBool("json")

		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read deal file: %w", err)
		}
		var deal map[string]interface{}
		if err := json.Unmarshal(raw, &deal); err != nil {
			return fmt.Errorf("invalid deal JSON: %w", err)
		}

		set, err := loadPolicySet()
		if err != nil {
			return fmt.Errorf("failed to load policy set: %w", err)
		}
		resolver, err := policy.NewResolver(set)
		if err != nil {
			return err
		}
		res, err := resolver.Resolve(vertical, subVertical, region)
		if err != nil {
			return err
		}

		result, err := engine.Evaluate(deal, res.Policy)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		printResult(result)
		return nil
	},
}

func printResult(result *types.EvaluationResult) {
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	decisionColor := color.New(color.FgGreen, color.Bold)
	switch result.Decision {
	case types.DecisionNeedsReview:
		decisionColor = color.New(color.FgYellow, color.Bold)
	case types.DecisionReject:
		decisionColor = color.New(color.FgRed, color.Bold)
	}

	fmt.Printf("%s %s\n", cyan("Decision:"), decisionColor.Sprint(string(result.Decision)))
	fmt.Printf("%s %.4f\n", cyan("Score:"), result.Score)
	fmt.Printf("%s %s (policy %s)\n", cyan("Persona:"), result.PersonaKey, result.PolicyVersion)
	fmt.Printf("%s %s\n", cyan("Reasoning:"), result.Reasoning)
	if len(result.EdgeCasesTriggered) > 0 {
		fmt.Printf("%s\n", cyan("Edge cases:"))
		for _, ec := range result.EdgeCasesTriggered {
			fmt.Printf("  %s %s\n", yellow("⚠"), ec)
		}
	}
	if result.OverrideReason != "" {
		fmt.Printf("%s %s\n", cyan("Override:"), result.OverrideReason)
	}
}

func init() {
	evaluateCmd.Flags().String("file", "", "path to the deal JSON file (required)")
	evaluateCmd.Flags().String("vertical", "", "vertical key (required)")
	evaluateCmd.Flags().String("sub-vertical", "", "sub-vertical key (required)")
	evaluateCmd.Flags().String("region", "", "region key (required)")
	evaluateCmd.Flags().Bool("json", false, "emit the raw result as JSON")
	_ = evaluateCmd.MarkFlagRequired("file")
	_ = evaluateCmd.MarkFlagRequired("vertical")
	_ = evaluateCmd.MarkFlagRequired("sub-vertical")
	_ = evaluateCmd.MarkFlagRequired("region")
	rootCmd.AddCommand(evaluateCmd)
}
