package syncservice

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteSummary prints one line per collection: read, written, dropped, failed batches
func WriteSummary(w io.Writer, summaries []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tTABLE\tSTATE\tREAD\tWRITTEN\tDROPPED\tFAILED BATCHES\tERROR")

	var read, written int
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			s.Collection, s.Table, s.State, s.Read, s.Written, s.Dropped, len(s.FailedBatches), s.Error)
		read += s.Read
		written += s.Written
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t%d\t%d\t\t\t\n", read, written)
	return tw.Flush()
}

// WriteCounts prints the ERP vs mirror comparison produced by Check
func WriteCounts(w io.Writer, counts []CountResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tTABLE\tERP\tMIRROR\tDIFF\tNEWEST\tERROR")
	for _, c := range counts {
		newest := "-"
		if c.Newest != nil {
			newest = fmt.Sprint(c.Newest)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n", c.Collection, c.Table, c.Remote, c.Mirror, c.Remote-c.Mirror, newest, c.Error)
	}
	return tw.Flush()
}

// WriteCatalog lists collections with their source model and destination table
func WriteCatalog(w io.Writer, cols []Collection) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODEL\tTABLE\tMODE\tDATE FIELD\tCOLUMNS")
	for _, c := range cols {
		dateField := c.DateField
		if dateField == "" {
			dateField = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", c.Name, c.Model, c.Table, c.ReadMode, dateField, len(c.Map.Columns)+len(c.Map.Derived))
	}
	return tw.Flush()
}
