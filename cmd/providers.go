package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/simonyos/rulefy/internal/config"
	"github.com/simonyos/rulefy/internal/llm"
	"github.com/simonyos/rulefy/internal/tui/theme"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported LLM providers",
	Run: func(cmd *cobra.Command, args []string) {
		renderProviders(os.Stdout, llm.NewRegistry(llm.WithKeyResolver(config.APIKey)))
	},
}

// renderProviders prints one row per provider with its defaults and whether
// a key is currently available.
func renderProviders(w io.Writer, registry *llm.Registry) {
	rows := make([][]string, 0, len(registry.Names()))
	for _, name := range registry.Names() {
		info, err := registry.Info(name)
		if err != nil {
			continue
		}
		cfg, _ := registry.DefaultConfig(name)

		key := "optional"
		switch {
		case name == "bedrock":
			key = "AWS credentials"
		case info.RequiresKey:
			key = "required"
		case info.EnvVar == "":
			key = "none"
		}
		status := ""
		if info.EnvVar != "" && cfg.APIKey != "" {
			status = "configured"
		}

		model := info.DefaultModel
		if model == "" {
			model = "-"
		}
		env := info.EnvVar
		if env == "" {
			env = "-"
		}
		rows = append(rows, []string{name, model, key, env, status})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Current.Border)).
		Headers("PROVIDER", "DEFAULT MODEL", "API KEY", "ENV VAR", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return style.Bold(true).Foreground(theme.Current.Primary)
			case col == 4:
				return style.Foreground(theme.Current.Success)
			}
			return style
		})

	fmt.Fprintln(w, t)
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
