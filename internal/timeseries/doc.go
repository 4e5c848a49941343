// Package timeseries loads sensor recordings from parquet and CSV files
// into aligned in-memory series. Files are opened read-only; malformed
// content fails the whole load rather than returning partial data.
package timeseries
