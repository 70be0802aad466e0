package cli

import (
	"fmt"

	"github.com/axeq/takeoverme/internal/version"
	"github.com/spf13/cobra"
)

var (
	versionShort bool
	versionJSON  bool

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			switch {
			case versionJSON:
				return writeJSON(cmd, info)
			case versionShort:
				fmt.Fprintln(cmd.OutOrStdout(), info.Version)
			default:
				fmt.Fprintln(cmd.OutOrStdout(), info)
			}
			return nil
		},
	}
)

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print build information as JSON")
}
