package cmdlets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtbot-platform/rtbot/pkg/config"
)

var (
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a robot config with a guided wizard",
		Long:  configInitCmdLongDocs,
		Run:   configInitCmdRun,
		Args:  cobra.NoArgs,
	}

	configInitCmdLongDocs = `The wizard asks for the handful of settings that differ between robots and writes them, together with the stock task rates and wiring, to the config file.  An existing file is loaded first so the wizard can be re-run to change it.`
)

func init() {
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("config", config.Path(), "File to write")
}

func configInitCmdRun(c *cobra.Command, args []string) {
	os.Exit(func() int {
		path, _ := c.Flags().GetString("config")

		cfg, err := config.Load(path)
		exists := err == nil
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.Default()
		} else if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %s\n", path, err)
			return 1
		}

		if err := cfg.WizardSurvey(exists); err != nil {
			fmt.Fprintf(os.Stderr, "Error running the wizard! (%s)\n", err)
			return 1
		}

		if err := cfg.Save(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %s\n", err)
			return 2
		}
		fmt.Printf("Wrote %s\n", path)
		return 0
	}())
}
