package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInstallCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "install <id>...",
		Short: "Fetch, verify and store instruments",
		Long: `Install instruments from the configured provider. Each identifier is
installed independently; the command fails if any of them did not install.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.bridge()
			if err != nil {
				return err
			}
			outcomes, err := b.MidiInstall(cmd.Context(), args)
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(outcomes))
			for id := range outcomes {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, id := range ids {
				fmt.Fprintf(w, "%s\t%s\n", id, outcomes[id].Status)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			return outcomes.Err()
		},
	}
}
