/*
Copyright © 2026 finconcept contributors
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionCmd prints the CLI version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the finconcept version",
	Run: func(cmd *cobra.Command, args []string) {
		if isJSON() {
			_ = printJSON(map[string]string{"version": GetVersion()})
			return
		}
		fmt.Println(GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// GetVersion returns the CLI version string.
func GetVersion() string {
	return version
}
