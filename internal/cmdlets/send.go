package cmdlets

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtbot-platform/rtbot/pkg/command"
	"github.com/rtbot-platform/rtbot/pkg/mqttpusher"
	"github.com/rtbot-platform/rtbot/pkg/network"
	"github.com/rtbot-platform/rtbot/pkg/topic"
)

var (
	sendCmd = &cobra.Command{
		Use:   "send <destination> <command>",
		Short: "Send one command word to a robot",
		Long:  sendCmdLongDocs,
		Run:   sendCmdRun,
		Args:  cobra.ExactArgs(2),
	}

	sendCmdLongDocs = `Send connects to a robot, over its command link or through an MQTT broker, and delivers a single command word to one of its queues: 1 is the motor controller, 2 the horn, 3 the line sensor.  The word may be given in decimal or as 0x prefixed hex, for example

  rtbot send 1 0x20000001    drive forward
  rtbot send 2 0x40000000    mute the horn`
)

func init() {
	rootCmd.AddCommand(sendCmd)
	addLinkFlags(sendCmd)
	sendCmd.Flags().Bool("wait-report", false, "Wait for and print one status record after sending")
}

func sendCmdRun(c *cobra.Command, args []string) {
	initLogger("send")
	os.Exit(func() int {
		dest, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bad destination %q: %s\n", args[0], err)
			return 1
		}
		word, err := topic.ParseCommandWord([]byte(args[1]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bad command word %q: %s\n", args[1], err)
			return 1
		}

		cl, done, err := openLink(c)
		if err != nil {
			appLogger.Error("Could not reach robot", "error", err)
			return 1
		}
		defer done()

		if err := cl.Send(int32(dest), word); err != nil {
			appLogger.Error("Error sending command", "error", err)
			return 1
		}
		appLogger.Info("Sent", "destination", dest, "command", fmt.Sprintf("0x%08x", uint32(word)))

		if wait, _ := c.Flags().GetBool("wait-report"); wait {
			if err := printReport(cl); err != nil {
				appLogger.Error("Error receiving report", "error", err)
				return 2
			}
		}
		return 0
	}())
}

func printReport(link robotLink) error {
	switch l := link.(type) {
	case *network.Client:
		m, err := l.Receive()
		if err != nil {
			return err
		}
		if kind, mm, ok := command.DecodeDistanceReport(m.Message); ok {
			fmt.Printf("%s distance: %d mm\n", kind, mm)
		} else {
			fmt.Printf("destination %d: 0x%08x\n", m.Destination, uint32(m.Message))
		}
	case *mqttpusher.Pusher:
		deadline := time.Now().Add(5 * time.Second)
		for {
			if r, ok := l.LastReport(); ok {
				fmt.Printf("robot %s at %s: current %d mm, min %d, max %d, average %d\n",
					r.RobotID, r.Time.Format(time.RFC3339), r.Current, r.Min, r.Max, r.Average)
				return nil
			}
			if time.Now().After(deadline) {
				return errors.New("no status report within 5s")
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
	return nil
}
