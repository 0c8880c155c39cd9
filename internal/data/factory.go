package data

import (
	"path/filepath"
	"strings"

	"backtest_engine/internal/core"
)

// CSVFactory builds sources reading <root>/<market>/<symbol>.csv, the
// layout the archiver writes. Market and symbol are lowercased on disk.
func CSVFactory(root string) func(sub core.Subscription) (core.IDataSource, error) {
	return func(sub core.Subscription) (core.IDataSource, error) {
		path := filepath.Join(root,
			strings.ToLower(sub.Market),
			strings.ToLower(sub.Symbol)+".csv")
		return NewCSVSource(path, sub.Symbol), nil
	}
}

// StreamFactory builds live WebSocket sources against a single endpoint
func StreamFactory(url string, bufferSize int, logger core.ILogger) func(sub core.Subscription) (core.IDataSource, error) {
	return func(sub core.Subscription) (core.IDataSource, error) {
		return NewStreamSource(url, sub.Symbol, bufferSize, logger), nil
	}
}
