package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/template"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sorapipe/compositor/internal/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (json or text)")
	cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runVersion(outputFormat string) error {
	info := version.Info()

	if outputFormat == "json" {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format version as JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	color.New(color.FgCyan, color.Bold).Println("compositor")

	const tmpl = `Version:    {{.Version}}
Go version: {{.GoVersion}}
Git commit: {{.GitCommit}}
Built:      {{.BuildTime}}
OS/Arch:    {{.OS}}/{{.Arch}}
`
	t, err := template.New("version").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse version template: %w", err)
	}
	return t.Execute(os.Stdout, info)
}
