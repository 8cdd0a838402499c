package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
)

// Show prints table counts and the most recent daily metric rows.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show metrics")
	}
	if closeStore != nil {
		defer closeStore()
	}

	merchants, factRows, err := store.TableCounts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "dim_merchants rows: %d\n", merchants)
	fmt.Fprintf(os.Stdout, "fact_daily_merchant_metrics rows: %d\n", factRows)

	metrics, err := store.ListRecentMetrics(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(metrics) == 0 {
		fmt.Fprintln(os.Stdout, "no metric rows found")
		return nil
	}

	fmt.Fprintf(os.Stdout, "\nTop %d rows from fact table:\n", len(metrics))
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tMerchant\tTxns\tApproved\tDeclined\tGross\tApproved Amt\tRate\tAvg Ticket")

	for _, m := range metrics {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			m.MetricDate.Format("2006-01-02"),
			m.MerchantID,
			m.TxnCount,
			m.ApprovedTxnCount,
			m.DeclinedTxnCount,
			formatDecimal(m.GrossAmount, 2),
			formatDecimal(m.ApprovedAmount, 2),
			formatDecimal(m.ApprovalRate, 4),
			formatDecimal(m.AvgTicket, 2),
		)
	}

	writer.Flush()
	return nil
}
