package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rolodex/internal/output"
	"github.com/Aman-CERP/rolodex/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON, short bool

	c := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			w := c.OutOrStdout()
			switch {
			case short:
				_, err := fmt.Fprintln(w, version.Short())
				return err
			case asJSON:
				return output.New(w).JSON(version.GetInfo())
			default:
				_, err := fmt.Fprintln(w, version.String())
				return err
			}
		},
	}

	c.Flags().BoolVar(&short, "short", false, "Print the version number only (wins over --json)")
	c.Flags().BoolVar(&asJSON, "json", false, "Print build information as JSON")
	return c
}
