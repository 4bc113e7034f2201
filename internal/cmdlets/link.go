package cmdlets

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtbot-platform/rtbot/pkg/mqttpusher"
	"github.com/rtbot-platform/rtbot/pkg/network"
)

// robotLink is however a ground command reaches the robot.
type robotLink interface {
	Send(dest, msg int32) error
}

func addLinkFlags(c *cobra.Command) {
	c.Flags().String("robot", "127.0.0.1:9090", "Address of the robot's command link")
	c.Flags().String("mqtt", "", "Reach the robot through this broker instead of its command link")
	c.Flags().String("robot-id", "", "Robot to command when using --mqtt")
}

// openLink connects to the robot as the flags describe.  The returned
// function releases the link.
func openLink(c *cobra.Command) (robotLink, func(), error) {
	broker, _ := c.Flags().GetString("mqtt")
	if broker != "" {
		id, _ := c.Flags().GetString("robot-id")
		if id == "" {
			return nil, nil, errors.New("--robot-id is required with --mqtt")
		}
		p, err := mqttpusher.New(id, mqttpusher.WithLogger(appLogger), mqttpusher.WithMQTTServer(broker))
		if err != nil {
			return nil, nil, err
		}
		if err := p.Connect(); err != nil {
			return nil, nil, err
		}
		return p, p.Disconnect, nil
	}

	addr, _ := c.Flags().GetString("robot")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cl, err := network.Dial(ctx, addr, network.WithLogger(appLogger))
	if err != nil {
		return nil, nil, err
	}
	return cl, func() { cl.Close() }, nil
}
