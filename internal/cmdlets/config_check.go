package cmdlets

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtbot-platform/rtbot/pkg/config"
)

var (
	configCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Validate a robot config",
		Run:   configCheckCmdRun,
		Args:  cobra.NoArgs,
	}
)

func init() {
	configCmd.AddCommand(configCheckCmd)
	configCheckCmd.Flags().String("config", config.Path(), "File to check")
}

func configCheckCmdRun(c *cobra.Command, args []string) {
	path, _ := c.Flags().GetString("config")
	if _, err := config.Load(path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("%s is valid\n", path)
}
