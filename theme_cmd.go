package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/briefcast/briefcast/internal/store"
)

var themeCmd = &cobra.Command{
	Use:       "theme [light|dark|toggle]",
	Short:     "Show or change the color theme",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(store.ThemeLight), string(store.ThemeDark), "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		switch {
		case len(args) == 0:
		case args[0] == "toggle":
			if _, err := a.settings.ToggleTheme(cmd.Context()); err != nil {
				return err
			}
		default:
			t, err := store.ParseTheme(args[0])
			if err != nil {
				return err
			}
			if err := a.settings.SetTheme(cmd.Context(), t); err != nil {
				return err
			}
		}
		fmt.Println(keyword(string(a.settings.Theme())))
		return nil
	},
}
