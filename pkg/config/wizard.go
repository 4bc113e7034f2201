package config

import (
	"fmt"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/google/uuid"
)

// WizardSurvey runs a step by step config workflow to gather the
// settings that differ between robots.  Everything else keeps the
// value already in the config.
func (c *Config) WizardSurvey(wouldOverwrite bool) error {
	if err := c.overwriteWarning(wouldOverwrite); err != nil {
		return err
	}

	if c.RobotID == "" {
		c.RobotID = uuid.NewString()
	}

	answers := struct {
		RobotID string
		Listen  string
		Backend string
	}{}
	prompts := []*survey.Question{
		{
			Name:     "RobotID",
			Validate: survey.Required,
			Prompt: &survey.Input{
				Message: "Robot ID",
				Default: c.RobotID,
			},
		},
		{
			Name:     "Listen",
			Validate: survey.Required,
			Prompt: &survey.Input{
				Message: "Command link listen address",
				Default: c.Network.Listen,
			},
		},
		{
			Name: "Backend",
			Prompt: &survey.Select{
				Message: "How is the hardware attached?",
				Options: []string{"sim", "serial"},
				Default: c.Hardware.Backend,
			},
		},
	}
	if err := survey.Ask(prompts, &answers); err != nil {
		return err
	}
	c.RobotID = answers.RobotID
	c.Network.Listen = answers.Listen
	c.Hardware.Backend = answers.Backend

	if c.Hardware.Backend == "serial" {
		if err := c.setSerial(); err != nil {
			return err
		}
	}

	if err := askInt("Minimum acceptable distance (mm, negative disables collision stops)", &c.Collision.MinimumDistance); err != nil {
		return err
	}

	if err := c.setServices(); err != nil {
		return err
	}

	return c.Validate()
}

func (c *Config) overwriteWarning(wouldOverwrite bool) error {
	if !wouldOverwrite {
		return nil
	}

	qOverwrite := &survey.Confirm{
		Message: "Overwrite existing config?",
	}
	if err := survey.AskOne(qOverwrite, &wouldOverwrite); err != nil {
		return err
	}
	if !wouldOverwrite {
		return fmt.Errorf("configuration canceled")
	}
	return nil
}

func (c *Config) setSerial() error {
	portPrompt := &survey.Input{
		Message: "Serial port of the I/O controller",
		Default: c.Hardware.Port,
	}
	if err := survey.AskOne(portPrompt, &c.Hardware.Port, survey.WithValidator(survey.Required)); err != nil {
		return err
	}
	return askInt("Baud rate", &c.Hardware.Baud)
}

func (c *Config) setServices() error {
	prompts := []*survey.Question{
		{
			Name: "Broker",
			Prompt: &survey.Input{
				Message: "MQTT broker (blank to disable)",
				Default: c.MQTT.Broker,
				Help:    "Something like tcp://10.0.0.1:1883",
			},
		},
		{
			Name: "Bind",
			Prompt: &survey.Input{
				Message: "Diagnostics HTTP address (blank to disable)",
				Default: c.HTTP.Bind,
			},
		},
	}
	answers := struct {
		Broker string
		Bind   string
	}{}
	if err := survey.Ask(prompts, &answers); err != nil {
		return err
	}
	c.MQTT.Broker = answers.Broker
	c.HTTP.Bind = answers.Bind
	return nil
}

func askInt(msg string, v *int) error {
	s := strconv.Itoa(*v)
	prompt := &survey.Input{
		Message: msg,
		Default: s,
	}
	isInt := func(ans interface{}) error {
		_, err := strconv.Atoi(ans.(string))
		return err
	}
	if err := survey.AskOne(prompt, &s, survey.WithValidator(isInt)); err != nil {
		return err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*v = n
	return nil
}
