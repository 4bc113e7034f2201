package cmdlets

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtbot-platform/rtbot/pkg/gamepad"
)

var (
	driveCmd = &cobra.Command{
		Use:   "drive",
		Short: "Drive a robot with a gamepad",
		Long:  driveCmdLongDocs,
		Run:   driveCmdRun,
		Args:  cobra.NoArgs,
	}

	driveCmdLongDocs = `Drive reads a gamepad and sends motion, speed and steering commands to a robot over its command link, or through an MQTT broker with --mqtt.  The left stick picks the direction, the right stick steers and the right trigger sets the speed.  A sounds the horn, B mutes it and X sounds the backup alarm.  The shoulder buttons start and stop line sensing, Start and Back enable and disable line following.

If the gamepad is unplugged the robot is told to stop until the gamepad comes back.`
)

func init() {
	rootCmd.AddCommand(driveCmd)
	addLinkFlags(driveCmd)
	driveCmd.Flags().Int("joystick", 0, "Joystick number to read")
	driveCmd.Flags().Duration("rate", 20*time.Millisecond, "How often the gamepad is polled")
}

func driveCmdRun(c *cobra.Command, args []string) {
	initLogger("drive")
	os.Exit(func() int {
		id, _ := c.Flags().GetInt("joystick")
		rate, _ := c.Flags().GetDuration("rate")

		pad := gamepad.New(id, gamepad.WithLogger(appLogger))
		if err := pad.Bind(); err != nil {
			appLogger.Error("Could not bind gamepad", "joystick", id, "error", err)
			return 1
		}
		defer pad.Close()

		cl, done, err := openLink(c)
		if err != nil {
			appLogger.Error("Could not reach robot", "error", err)
			return 1
		}
		defer done()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		err = gamepad.NewDriver(appLogger, pad, cl, rate).Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error("Driving stopped", "error", err)
			return 2
		}
		appLogger.Info("Parked")
		return 0
	}())
}
