package cmdlets

import (
	"github.com/spf13/cobra"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage robot configuration",
		Long:  configCmdLongDocs,
	}

	configCmdLongDocs = `The config commands create and check the YAML file that describes a robot: its task rates, how its parts are wired, and which services it runs.`
)

func init() {
	rootCmd.AddCommand(configCmd)
}
