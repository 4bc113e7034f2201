package cmdlets

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rtbot-platform/rtbot/pkg/buildinfo"
	"github.com/rtbot-platform/rtbot/pkg/config"
	"github.com/rtbot-platform/rtbot/pkg/console"
	"github.com/rtbot-platform/rtbot/pkg/system"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the robot",
		Long:  runCmdLongDocs,
		Run:   runCmdRun,
		Args:  cobra.NoArgs,
	}

	runCmdLongDocs = `Run brings up every task on the robot, listens for a ground station on the command link, and then reads operator commands from the terminal until told to QUIT or interrupted.

Console commands:
  P     print task diagnostics
  R     reset task diagnostics
  M     mute the horn
  QUIT  shut down`
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("config", config.Path(), "Robot configuration file")
}

func runCmdRun(c *cobra.Command, args []string) {
	initLogger("rtbot")
	os.Exit(func() int {
		// The main thread shows up in the diagnostics, so it must
		// stay the thread this goroutine runs on.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		appLogger.Info("Starting", "build", buildinfo.Summary())

		path, _ := c.Flags().GetString("config")
		cfg, err := config.Load(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !c.Flags().Changed("config"):
			appLogger.Warn("No config file, using defaults", "path", path)
			cfg = config.Default()
		case err != nil:
			appLogger.Error("Error loading config", "error", err)
			return 1
		}
		if cfg.RobotID == "" {
			cfg.RobotID = uuid.NewString()
			appLogger.Info("Generated robot id", "id", cfg.RobotID)
		}

		reg := task.NewRegistry()
		reg.RegisterThread("main", task.CurrentThreadID(), 0)

		r, err := system.New(*cfg, system.WithLogger(appLogger), system.WithRegistry(reg))
		if err != nil {
			appLogger.Error("Error building robot", "error", err)
			return 1
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := r.Start(); err != nil {
			appLogger.Error("Error starting robot", "error", err)
			r.Shutdown(ctx)
			return 1
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		done := make(chan struct{})
		go func() {
			bye, err := console.New(os.Stdin, os.Stdout, r, console.WithLogger(appLogger)).Run()
			if err != nil {
				appLogger.Warn("Console stopped reading", "error", err)
			}
			if bye {
				close(done)
			}
		}()

		select {
		case <-quit:
			appLogger.Info("Shutdown requested")
		case <-done:
		}
		r.Shutdown(ctx)
		return 0
	}())
}
