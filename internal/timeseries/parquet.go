package timeseries

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"faultscope/internal/services"
)

func readParquetTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedData, "timeseries", "read-parquet",
			fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedData, "timeseries", "read-parquet",
			fmt.Sprintf("stat %s", path), err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedData, "timeseries", "read-parquet",
			fmt.Sprintf("%s is not a readable parquet file", path), err)
	}

	fields := pf.Schema().Fields()
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = field.Name()
	}
	cols := make([][]float64, len(names))
	for _, group := range pf.RowGroups() {
		rows := group.Rows()
		if err := readRowGroup(rows, cols, path); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return &table{names: names, cols: cols}, nil
}

func readRowGroup(rows parquet.Rows, cols [][]float64, path string) error {
	buf := make([]parquet.Row, 256)
	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			for _, value := range row {
				idx := int(value.Column())
				if idx < 0 || idx >= len(cols) {
					return services.Wrap(services.ErrMalformedData, "timeseries", "read-parquet",
						fmt.Sprintf("%s has a value outside its declared schema", path), nil)
				}
				number, ok := numericValue(value)
				if !ok {
					return services.Wrap(services.ErrMalformedData, "timeseries", "read-parquet",
						fmt.Sprintf("%s column %d holds non-numeric data", path, idx), nil)
				}
				cols[idx] = append(cols[idx], number)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return services.Wrap(services.ErrMalformedData, "timeseries", "read-parquet",
				fmt.Sprintf("read rows from %s", path), err)
		}
	}
}

func numericValue(value parquet.Value) (float64, bool) {
	if value.IsNull() {
		return 0, false
	}
	switch value.Kind() {
	case parquet.Double:
		return value.Double(), true
	case parquet.Float:
		return float64(value.Float()), true
	case parquet.Int64:
		return float64(value.Int64()), true
	case parquet.Int32:
		return float64(value.Int32()), true
	default:
		return 0, false
	}
}
