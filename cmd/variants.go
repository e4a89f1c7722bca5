package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/classifier"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
)

// variantsCmd lists the document types in the order automatic detection
// tries them, with the names accepted by --hint.
var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "List supported document types and hint names",
	Run: func(cmd *cobra.Command, args []string) {
		printVariants(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(variantsCmd)
}

func printVariants(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tHINT\tIDENTIFIER")
	for i, x := range classifier.New(nil).Extractors() {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, x.Name(), x.Variant().Ident())
	}
	fmt.Fprintf(w, "-\t%s\t(automatic detection)\n", types.HintAuto)
	w.Flush()
}
