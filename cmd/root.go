package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sorapipe/compositor/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "compositor",
	Short: "Compose per-participant recording archives into a single synchronized output",
	Long: `compositor ingests multiple per-participant audio/video conferencing
recording archives, time-aligns them against a shared session clock, and
composes them into a single synchronized MP4 or WebM output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			info := version.Info()
			fmt.Printf("compositor version %s, build %s\n", info["Version"], info["GitCommit"])
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewComposeCommand())
}
