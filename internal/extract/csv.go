package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Column names recognised in the merchant input.
const (
	colMerchantID   = "merchant_id"
	colMerchantName = "merchant_name"
	colCategory     = "category"
	colCity         = "city"
	colState        = "state"
)

// Column names recognised in the transaction input.
const (
	colTransactionID = "transaction_id"
	colTxnTimestamp  = "txn_ts_utc"
	colAmount        = "amount"
	colStatus        = "status"
)

// CSVOptions parameterise the CSV source.
type CSVOptions struct {
	MerchantsPath    string
	TransactionsPath string
}

// CSVSource reads both pipeline inputs from CSV files. Column positions are
// resolved from the header row, so column order and extra columns such as
// payment_method do not matter.
type CSVSource struct {
	opts   CSVOptions
	logger zerolog.Logger
}

// NewCSVSource constructs a CSV-backed source.
func NewCSVSource(opts CSVOptions, logger zerolog.Logger) *CSVSource {
	return &CSVSource{
		opts:   opts,
		logger: logger.With().Str("component", "csv_source").Logger(),
	}
}

// ReadMerchants reads the merchant input file.
func (c *CSVSource) ReadMerchants(ctx context.Context) ([]MerchantRow, error) {
	f, err := os.Open(c.opts.MerchantsPath)
	if err != nil {
		return nil, fmt.Errorf("open merchants input: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := readHeader(r, c.opts.MerchantsPath)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(header, c.opts.MerchantsPath, colMerchantID, colMerchantName); err != nil {
		return nil, err
	}

	rows := make([]MerchantRow, 0, 64)
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, readErr := r.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read merchants input: %w", readErr)
		}
		line++

		rows = append(rows, MerchantRow{
			MerchantID:   cell(record, header[colMerchantID]),
			MerchantName: cell(record, header[colMerchantName]),
			Category:     cell(record, optional(header, colCategory)),
			City:         cell(record, optional(header, colCity)),
			State:        cell(record, optional(header, colState)),
			Line:         line,
		})
	}

	c.logger.Debug().Int("rows", len(rows)).Str("path", c.opts.MerchantsPath).Msg("merchants input read")
	return rows, nil
}

// ReadTransactions reads the transaction input file.
func (c *CSVSource) ReadTransactions(ctx context.Context) ([]RawTransaction, error) {
	f, err := os.Open(c.opts.TransactionsPath)
	if err != nil {
		return nil, fmt.Errorf("open transactions input: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := readHeader(r, c.opts.TransactionsPath)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(header, c.opts.TransactionsPath,
		colTransactionID, colMerchantID, colTxnTimestamp, colAmount, colStatus); err != nil {
		return nil, err
	}

	rows := make([]RawTransaction, 0, 1024)
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, readErr := r.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read transactions input: %w", readErr)
		}
		line++

		rows = append(rows, RawTransaction{
			TransactionID: cell(record, header[colTransactionID]),
			MerchantID:    cell(record, header[colMerchantID]),
			TxnTimestamp:  cell(record, header[colTxnTimestamp]),
			Amount:        cell(record, header[colAmount]),
			Status:        cell(record, header[colStatus]),
			Line:          line,
		})
	}

	c.logger.Debug().Int("rows", len(rows)).Str("path", c.opts.TransactionsPath).Msg("transactions input read")
	return rows, nil
}

func readHeader(r *csv.Reader, path string) (map[string]int, error) {
	record, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("input %s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	header := make(map[string]int, len(record))
	for i, name := range record {
		header[strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))] = i
	}
	return header, nil
}

func requireColumns(header map[string]int, path string, cols ...string) error {
	missing := make([]string, 0, len(cols))
	for _, col := range cols {
		if _, ok := header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("input %s: missing required columns: %s", path, strings.Join(missing, ", "))
	}
	return nil
}

func optional(header map[string]int, col string) int {
	if idx, ok := header[col]; ok {
		return idx
	}
	return -1
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

var (
	_ MerchantSource    = (*CSVSource)(nil)
	_ TransactionSource = (*CSVSource)(nil)
)
