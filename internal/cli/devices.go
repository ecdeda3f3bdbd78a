package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/leandrodaf/midibridge/sdk/midi"
	"github.com/spf13/cobra"
)

func newDevicesCommand(a *app) *cobra.Command {
	var ports bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List MIDI input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			var client contracts.DeviceSource
			if ports {
				client, err = midi.NewPortClient(opts...)
			} else {
				client, err = midi.NewMIDIClient(opts...)
			}
			if err != nil {
				return err
			}
			defer client.Stop()

			devices, err := client.ListDevices()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tNAME\tENTITY\tMANUFACTURER")
			for i, d := range devices {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, d.Name, d.EntityName, d.Manufacturer)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&ports, "ports", false, "list ports of the registered gomidi driver instead of the platform API")
	return cmd
}
