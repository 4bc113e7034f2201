package cmdlets

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rtbot-platform/rtbot/pkg/metrics"
	"github.com/rtbot-platform/rtbot/pkg/mqttserver"
	"github.com/rtbot-platform/rtbot/pkg/topic"
)

var (
	brokerCmd = &cobra.Command{
		Use:   "broker",
		Short: "Run an MQTT broker for a fleet of robots",
		Long:  brokerCmdLongDocs,
		Run:   brokerCmdRun,
		Args:  cobra.NoArgs,
	}

	brokerCmdLongDocs = `Broker runs a standalone MQTT broker that robots publish their status to and receive commands from.  Robots may only publish their own status, ground stations may only publish commands.  The broker watches the status reports itself and serves them as prometheus metrics.`
)

func init() {
	rootCmd.AddCommand(brokerCmd)
	brokerCmd.Flags().String("bind", ":1883", "Address to serve MQTT on")
	brokerCmd.Flags().String("metrics", ":8080", "Address to serve metrics on, empty to disable")
}

func brokerCmdRun(c *cobra.Command, args []string) {
	initLogger("broker")
	os.Exit(func() int {
		bind, _ := c.Flags().GetString("bind")
		mbind, _ := c.Flags().GetString("metrics")

		m := metrics.New(metrics.WithLogger(appLogger))
		m.StartFlusher()

		s, err := mqttserver.NewServer(mqttserver.WithLogger(appLogger))
		if err != nil {
			appLogger.Error("Error during broker initialization", "error", err)
			return 1
		}
		if err := s.Serve(bind); err != nil {
			appLogger.Error("Error starting broker", "error", err)
			return 1
		}
		if err := s.Subscribe(topic.AllStatus, m.MQTTCallback); err != nil {
			appLogger.Error("Error subscribing to status", "error", err)
			return 1
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		if mbind != "" {
			go func() {
				if err := m.BuiltinWebserver(mbind); err != nil && !errors.Is(err, http.ErrServerClosed) {
					appLogger.Error("Error serving metrics", "error", err)
					quit <- syscall.SIGINT
				}
			}()
		}

		<-quit
		appLogger.Info("Shutting down...")
		m.Shutdown()
		if err := s.Shutdown(); err != nil {
			appLogger.Error("Error stopping broker", "error", err)
			return 2
		}
		return 0
	}())
}
