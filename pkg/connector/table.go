// pkg/connector/table.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// TableSource reads database tables into a dataset so they can be
// anonymized the same way as a workbook
type TableSource struct {
	conn    DatabaseConnector
	timeout time.Duration
	logger  *zap.Logger
}

// NewTableSource creates a table source reading through conn
func NewTableSource(conn DatabaseConnector, timeout time.Duration, logger *zap.Logger) (*TableSource, error) {
	if conn == nil {
		return nil, errors.New("connector cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &TableSource{
		conn:    conn,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// ReadDataset reads each table into one sheet named after the table.
// Columns keep result order and rows are ordered by every column in turn,
// so repeated reads of unchanged tables produce the same dataset.
func (s *TableSource) ReadDataset(ctx context.Context, name string, tables []string) (*model.Dataset, error) {
	if len(tables) == 0 {
		return nil, errors.New("at least one table is required")
	}

	ds := &model.Dataset{Name: name, Format: model.FormatXLSX}
	for _, table := range tables {
		sheet, err := s.readTable(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to read table %s: %w", table, err)
		}
		ds.Sheets = append(ds.Sheets, sheet)
	}
	return ds, nil
}

func (s *TableSource) readTable(ctx context.Context, table string) (*model.Sheet, error) {
	quoted := s.conn.QuoteTable(table)

	columns, err := s.columns(ctx, quoted)
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM " + quoted
	if len(columns) > 0 {
		query += " ORDER BY " + ordinalList(len(columns))
	}

	rows, cancel, err := s.conn.QueryWithTimeout(ctx, query, s.timeout)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer cancel()
	defer rows.Close()

	sheet := &model.Sheet{Name: table, Columns: make([]*model.Column, len(columns))}
	for i, col := range columns {
		sheet.Columns[i] = &model.Column{Name: col}
	}

	for rows.Next() {
		record := make(map[string]interface{}, len(columns))
		if err := rows.MapScan(record); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, col := range columns {
			sheet.Columns[i].Values = append(sheet.Columns[i].Values, cellFromDB(record[col]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	s.logger.Info("Read table",
		zap.String("table", table),
		zap.Int("columns", len(columns)),
		zap.Int("rows", sheet.RowCount()))

	return sheet, nil
}

// columns fetches the column names of a table without reading any rows
func (s *TableSource) columns(ctx context.Context, quoted string) ([]string, error) {
	rows, cancel, err := s.conn.QueryWithTimeout(ctx, "SELECT * FROM "+quoted+" WHERE 1 = 0", s.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}
	defer cancel()
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	return columns, nil
}

func ordinalList(n int) string {
	ordinals := make([]string, n)
	for i := range ordinals {
		ordinals[i] = strconv.Itoa(i + 1)
	}
	return strings.Join(ordinals, ", ")
}

// cellFromDB converts driver values into the cell types the dataset model uses
func cellFromDB(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}
