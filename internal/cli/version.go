package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agent version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dbwatch %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printBanner(w io.Writer, version string) {
	fig := figure.NewFigure("dbwatch", "", true)
	for _, line := range fig.Slicify() {
		if strings.TrimSpace(line) != "" {
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintf(w, "version %s\n\n", version)
}
