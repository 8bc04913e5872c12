package main

import (
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kirillm/action-guard/internal/policy"
)

func policyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "policy", Short: "Inspect and validate risk policies"}
	cmd.AddCommand(policyValidateCmd())
	cmd.AddCommand(policyShowCmd())
	return cmd
}

func policyValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a policy file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := viper.GetString("profile")
			p, err := policy.Load(args[0], profile)
			if err != nil {
				var fieldErrs criterio.FieldErrors
				if errors.As(err, &fieldErrs) {
					for _, fe := range fieldErrs {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", fe.Field, fe.Err)
					}
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "policy %s (profile %s) is valid\n", args[0], p.ProfileName)
			return nil
		},
	}
}

func policyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective policy (defaults merged with --policy)",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := policy.LoadOrDefault(viper.GetString("policy"), viper.GetString("profile"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cmd, p)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(p)
		},
	}
}
