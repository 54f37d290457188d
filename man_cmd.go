package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		manPage, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return err //nolint:wrapcheck
		}

		manPage = manPage.WithSection("Configuration",
			"briefcast reads briefcast.yml from $BRIEFCAST_CONFIG_HOME, $XDG_CONFIG_HOME/briefcast "+
				"or the user config directory. Every key can be set from the environment with the "+
				"BRIEFCAST_ prefix, e.g. BRIEFCAST_GENAI_API_KEY.")
		fmt.Println(manPage.Build(roff.NewDocument()))
		return nil
	},
}
