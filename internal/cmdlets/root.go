// Package cmdlets contains the main entrypoints of the various
// functions that the rtbot tool can perform.
package cmdlets

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "rtbot",
		Short: "Entrypoint for all rtbot commands",
		Long:  rootCmdLongDocs,
	}
	rootCmdLongDocs = `rtbot runs a mobile robot as a set of realtime tasks, and provides the ground side tools to drive it, watch it, and configure it.`

	appLogger = hclog.NewNullLogger()
)

// Entrypoint is the entrypoint into all cmdlets, it will dispatch to
// the right one.
func Entrypoint() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func initLogger(name string) {
	ll := os.Getenv("LOG_LEVEL")
	if ll == "" {
		ll = "INFO"
	}
	appLogger = hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: hclog.LevelFromString(ll),
	})
	appLogger.Info("Log level", "level", appLogger.GetLevel())
}
