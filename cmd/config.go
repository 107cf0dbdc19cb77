package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/simonyos/rulefy/internal/config"
	"github.com/simonyos/rulefy/internal/llm"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage rulefy configuration",
	Long: `Manage rulefy configuration including API keys and defaults.

Examples:
  rulefy config                         # Show current config
  rulefy config set openai <key>        # Set OpenAI API key
  rulefy config set provider deepseek   # Set default provider
  rulefy config set ollama_url <url>    # Point ollama at another host
  rulefy config delete openai           # Remove OpenAI API key`,
	Run: func(cmd *cobra.Command, args []string) {
		showConfig()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Available keys:
  <provider>       - API key for anthropic, openai, openrouter, deepseek,
                     litellm or openai-compatible (also <provider>_api_key)
  <provider>_url   - Base URL for a provider, e.g. litellm_url, ollama_url
  provider         - Default provider (see 'rulefy providers')
  model            - Default model for the default provider
  region           - AWS region for bedrock
  chunk_size       - Tokens per chunk
  delay_ms         - Delay between chunks in milliseconds
  nats_url         - NATS server for progress events`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		value := args[1]

		if err := config.Set(key, value); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Set %s successfully.\n", key)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		keys := config.ListKeys(envVars())

		if val, ok := keys[key]; ok {
			fmt.Printf("%s: %s\n", key, val)
		} else {
			fmt.Printf("%s is not set\n", key)
		}
	},
}

var configDeleteCmd = &cobra.Command{
	Use:     "delete <key>",
	Aliases: []string{"remove", "unset"},
	Short:   "Delete a configuration value",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]

		if err := config.Delete(key); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Deleted %s.\n", key)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.ConfigPath())
	},
}

func showConfig() {
	fmt.Printf("Configuration file: %s\n\n", config.ConfigPath())

	keys := config.ListKeys(envVars())
	if len(keys) == 0 {
		fmt.Println("No configuration set.")
		fmt.Println("\nUse 'rulefy config set <key> <value>' to configure.")
		return
	}

	for _, k := range slices.Sorted(maps.Keys(keys)) {
		fmt.Printf("  %s: %s\n", k, keys[k])
	}
}

// envVars maps each keyed provider to the environment variable holding its key.
func envVars() map[string]string {
	registry := llm.NewRegistry()
	vars := make(map[string]string)
	for _, name := range registry.Names() {
		info, err := registry.Info(name)
		if err == nil && info.EnvVar != "" && name != "bedrock" {
			vars[name] = info.EnvVar
		}
	}
	return vars
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configDeleteCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
