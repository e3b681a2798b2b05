package cmd

import (
	"fmt"

	"github.com/am6737/tunio/config"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func printConfig(c *cli.Context) error {
	out, err := yaml.Marshal(config.GenerateConfigTemplate())
	if err != nil {
		return fmt.Errorf("could not render config: %w", err)
	}
	_, err = fmt.Fprint(c.App.Writer, string(out))
	return err
}
