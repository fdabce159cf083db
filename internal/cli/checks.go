package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/dbwatch/internal/control"
	"github.com/vietddude/dbwatch/internal/core/checks"
	"github.com/vietddude/dbwatch/internal/core/config"
	"github.com/vietddude/dbwatch/internal/core/domain"
)

var (
	checksRole      string
	checksDBVersion string
	checksLLD       bool
)

var checksCmd = &cobra.Command{
	Use:   "checks [file...]",
	Short: "Load a check set and list its sections without connecting",
	Long: `Load check files and print sections, intervals and keys. Without file
arguments the files are chosen from the config as they would be for a
backend with the given role and version.`,
	Run: runChecks,
}

func init() {
	checksCmd.Flags().StringVar(&checksRole, "role", "primary", "backend role used to pick the check set")
	checksCmd.Flags().StringVar(&checksDBVersion, "db-version", "", "backend major version used to pick the check set")
	checksCmd.Flags().BoolVar(&checksLLD, "lld", false, "also print the discovery payloads")
	rootCmd.AddCommand(checksCmd)
}

func runChecks(cmd *cobra.Command, args []string) {
	stylelog.InitDefault()

	paths := args
	if len(paths) == 0 {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
		if checksDBVersion == "" {
			slog.Error("--db-version is required when no files are given")
			os.Exit(1)
		}
		id := domain.Identity{Role: checksRole, Version: checksDBVersion}
		paths = control.Settings(cfg).Sources(id)
	}

	reg := checks.NewRegistry(afero.NewOsFs(), paths, slog.Default())
	snap, _, err := reg.Load()
	if err != nil {
		slog.Error("Failed to load checks", "error", err)
		os.Exit(1)
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SECTION\tMINUTES\tKEY\tSOURCE\tQUERY")
	for _, sec := range snap.Sections {
		for _, chk := range sec.Checks {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				sec.Name, sec.Interval, chk.Key, sec.Source, checks.Abbrev(chk.Query, 60))
		}
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d sections, %d checks from %d files\n",
		len(snap.Sections), snap.CheckCount(), len(snap.Sources))

	if checksLLD {
		_, _ = fmt.Fprintf(out, "\nsections: %s\nqueries:  %s\n", snap.SectionDiscovery, snap.CheckDiscovery)
	}
}
