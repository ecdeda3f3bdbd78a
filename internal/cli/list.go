package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type listEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Size   int64  `json:"size,omitempty"`
	Status string `json:"status"`
	OnDisk bool   `json:"on_disk"`
}

// assetChecker is implemented by storages that can tell whether an asset
// was written by an earlier run.
type assetChecker interface {
	Has(id string) bool
}

func newListCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the instruments of the configured provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.bridge()
			if err != nil {
				return err
			}
			c := b.Container()
			if err := c.RefreshCatalog(cmd.Context()); err != nil {
				return fmt.Errorf("listing %s: %w", a.cfg.Provider, err)
			}

			checker, _ := b.Options().Storage.(assetChecker)
			var entries []listEntry
			for _, inst := range c.Catalog() {
				e := listEntry{ID: inst.ID, Name: inst.Name, Size: inst.Size, Status: inst.Status.String()}
				if checker != nil {
					e.OnDisk = checker.Has(inst.ID)
				}
				entries = append(entries, e)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No instruments available.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSIZE\tSTATUS\tON DISK")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.ID, e.Name, e.Size, e.Status, yesNo(e.OnDisk))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
