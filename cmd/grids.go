package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/cellneigh/internal/export"
	"github.com/sells-group/cellneigh/internal/store"
)

var gridsCmd = &cobra.Command{
	Use:   "grids",
	Short: "Inspect stored neighbourhoods",
	Long:  "Commands for listing, viewing, and deleting neighbourhoods saved with --save.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("grids")
	},
}

// -- grids list --

var gridsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored grids",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		grids, err := st.ListGrids(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "grids list")
		}

		if len(grids) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No grids found.")
			return nil
		}

		formatGridsList(cmd.OutOrStdout(), grids)
		return nil
	},
}

// -- grids show --

var gridsShowCmd = &cobra.Command{
	Use:   "show <grid-id>",
	Short: "Print a stored neighbourhood",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		name, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(name)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		nb, err := st.LoadNeighborhood(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "grids show")
		}
		return export.Write(cmd.OutOrStdout(), nb, format)
	},
}

// -- grids delete --

var gridsDeleteCmd = &cobra.Command{
	Use:   "delete <grid-id>",
	Short: "Delete a stored neighbourhood",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteGrid(ctx, args[0]); err != nil {
			return eris.Wrap(err, "grids delete")
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Deleted %s.\n", args[0])
		return nil
	},
}

func init() {
	gridsListCmd.Flags().Int("limit", 50, "max number of grids to display")
	gridsShowCmd.Flags().String("format", "json", "output format: csv, json, yaml or xlsx")

	gridsCmd.AddCommand(gridsListCmd)
	gridsCmd.AddCommand(gridsShowCmd)
	gridsCmd.AddCommand(gridsDeleteCmd)
	rootCmd.AddCommand(gridsCmd)
}

// formatGridsList writes a tabular list of grids to out.
func formatGridsList(out io.Writer, grids []store.GridRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tROWS\tCOLS\tCELL_SIZE\tRANK\tTOTAL\tEXTENT\tCREATED")
	for _, g := range grids {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%g\t%d\t%d\t%s\t%s\n",
			g.ID, g.Rows, g.Cols, g.CellSize, g.Rank, g.Total, g.Extent,
			g.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
