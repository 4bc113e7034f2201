package cmdlets

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtbot-platform/rtbot/internal/stats"
	"github.com/rtbot-platform/rtbot/pkg/metrics"
)

var (
	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Export the status of every robot on a broker as metrics",
		Long:  monitorCmdLongDocs,
		Run:   monitorCmdRun,
		Args:  cobra.NoArgs,
	}

	monitorCmdLongDocs = `Monitor subscribes to the status reports that robots publish to an MQTT broker and serves them as prometheus metrics on /metrics.  Robots that stop reporting are dropped after the zombie timeout.`
)

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().String("broker", "tcp://127.0.0.1:1883", "Broker to watch")
	monitorCmd.Flags().String("bind", ":8080", "Address to serve metrics on")
	monitorCmd.Flags().Duration("zombie-timeout", 10*time.Second, "Forget robots that have been quiet this long")
}

func monitorCmdRun(c *cobra.Command, args []string) {
	initLogger("monitor")
	os.Exit(func() int {
		broker, _ := c.Flags().GetString("broker")
		bind, _ := c.Flags().GetString("bind")
		zombie, _ := c.Flags().GetDuration("zombie-timeout")

		m := metrics.New(metrics.WithLogger(appLogger), metrics.WithZombieTimeout(zombie))
		m.StartFlusher()

		sl := stats.NewListener(appLogger, broker, m)
		if err := sl.Listen(); err != nil {
			appLogger.Error("Could not start listening", "error", err)
			return 1
		}
		defer sl.Close()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			if err := m.BuiltinWebserver(bind); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Error("Error serving metrics", "error", err)
				quit <- syscall.SIGINT
			}
		}()

		<-quit
		appLogger.Info("Shutting down...")
		m.Shutdown()
		return 0
	}())
}
