package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "guardctl",
	Short: "Action guard CLI",
	Long: `guardctl classifies actions proposed by automation engines, validates risk
policies and runs the guard service.

- classify: score one action against a policy and show the factor breakdown.
- policy validate: check a policy file before deploying it.
- serve: run the orchestrator with notification channels, the operator bot and the HTTP intake API.
- pending: list and resolve queued requests on a running guard.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("policy", "", "policy YAML file (built-in defaults when empty)")
	rootCmd.PersistentFlags().String("profile", "", "policy profile name")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("policy", rootCmd.PersistentFlags().Lookup("policy"))
	_ = viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
}

func registerCommands() {
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(policyCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
