package timeseries

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"faultscope/internal/services"
)

func readCSVTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedData, "timeseries", "read-csv",
			fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedData, "timeseries", "read-csv",
			fmt.Sprintf("%s has no header row", path), err)
	}
	names := make([]string, len(header))
	for i, name := range header {
		names[i] = strings.TrimSpace(name)
	}

	cols := make([][]float64, len(names))
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrMalformedData, "timeseries", "read-csv",
				fmt.Sprintf("%s row %d", path, row+1), err)
		}
		for i, cell := range record {
			value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, services.Wrap(services.ErrMalformedData, "timeseries", "read-csv",
					fmt.Sprintf("%s row %d column %s is not numeric", path, row+1, names[i]), nil)
			}
			cols[i] = append(cols[i], value)
		}
		row++
	}
	return &table{names: names, cols: cols}, nil
}
