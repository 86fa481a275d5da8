package main

import (
	"fmt"
	"strings"

	"github.com/gomlx/hftasks/arch"
	"github.com/urfave/cli/v2"
)

func archsCommand(ui UI) *cli.Command {
	return &cli.Command{
		Name:  "archs",
		Usage: "list the known architectures, or the tasks and models of one",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "arch", Usage: "architecture to show the tasks and models of"},
		},
		Action: func(c *cli.Context) error {
			registry := arch.NewRegistry()
			name := c.String("arch")
			if name == "" {
				for _, a := range registry.Architectures() {
					_, _ = fmt.Fprintln(ui.Out, a)
				}
				return nil
			}
			models := registry.Models(name, "")
			if len(models) == 0 {
				return fmt.Errorf("unknown architecture %q", name)
			}
			_, _ = fmt.Fprintf(ui.Out, "tasks: %s\n", strings.Join(registry.Tasks(name), ", "))
			for _, model := range models {
				_, _ = fmt.Fprintln(ui.Out, model)
			}
			return nil
		},
	}
}
