// Package report renders the book status printed at the end of a
// simulation.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/lobsim/internal/domain"
	"github.com/efreitasn/lobsim/internal/engine"
)

// WriteBook renders a snapshot as side-by-side bid and ask columns, best
// prices on the first row.
func WriteBook(w io.Writer, instrument string, snap engine.Snapshot, tick decimal.Decimal) error {
	if _, err := fmt.Fprintf(w, "%s  last %s  resting orders %d  pending stops %d\n",
		instrument,
		domain.FormatTicks(snap.LastTradePrice, tick),
		snap.RestingOrders,
		snap.PendingStops,
	); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "BID QTY\tBID\t\tASK\tASK QTY\t")

	rows := max(len(snap.Bids), len(snap.Asks))
	if rows == 0 {
		fmt.Fprintln(tw, "-\t-\t\t-\t-\t")
	}
	for i := 0; i < rows; i++ {
		bidQty, bid, ask, askQty := "", "", "", ""
		if i < len(snap.Bids) {
			bid = domain.FormatTicks(snap.Bids[i].Price, tick)
			bidQty = fmt.Sprint(snap.Bids[i].Quantity)
		}
		if i < len(snap.Asks) {
			ask = domain.FormatTicks(snap.Asks[i].Price, tick)
			askQty = fmt.Sprint(snap.Asks[i].Quantity)
		}
		fmt.Fprintf(tw, "%s\t%s\t\t%s\t%s\t\n", bidQty, bid, ask, askQty)
	}
	return tw.Flush()
}

// Spread returns best ask minus best bid as a decimal string, or "" when
// either side is empty.
func Spread(snap engine.Snapshot, tick decimal.Decimal) string {
	if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return ""
	}
	return domain.FormatTicks(snap.Asks[0].Price-snap.Bids[0].Price, tick)
}
