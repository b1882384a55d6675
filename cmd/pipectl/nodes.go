package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"voxelpipes.ai/internal/persistence/nodestore"
	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

var (
	nodesWorld string
	nodesAll   bool
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Inspect the persisted pipe node store",
}

var nodesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print persisted pipe nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := nodestore.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close()

		worlds := []string{worldOr(nodesWorld)}
		if nodesAll {
			lister, ok := store.(nodestore.Lister)
			if !ok {
				return fmt.Errorf("store driver %q cannot list worlds", cfg.Store.Driver)
			}
			if worlds, err = lister.Worlds(cmd.Context()); err != nil {
				return err
			}
		}
		for _, w := range worlds {
			recs, err := store.LoadNodes(cmd.Context(), w)
			if err != nil {
				return fmt.Errorf("load %s: %w", w, err)
			}
			printNodes(cmd.OutOrStdout(), recs)
		}
		return nil
	},
}

func init() {
	nodesListCmd.Flags().StringVar(&nodesWorld, "world", "", "World id (defaults to the configured world)")
	nodesListCmd.Flags().BoolVar(&nodesAll, "all", false, "List every world in the store")
	nodesCmd.AddCommand(nodesListCmd)
}

func worldOr(w string) string {
	if w = strings.ToUpper(strings.TrimSpace(w)); w != "" {
		return w
	}
	return cfg.WorldID
}

func printNodes(w io.Writer, recs []host.NodeRecord) {
	for _, r := range recs {
		line := r.Location().String()
		if r.DisabledSides != 0 {
			var off []string
			for _, d := range loc.Directions {
				if r.DisabledSides.Has(d) {
					off = append(off, d.String())
				}
			}
			line += " disabled=" + strings.Join(off, ",")
		}
		fmt.Fprintln(w, line)
	}
}
