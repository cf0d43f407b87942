// handlers_bloom.go implements the Bloom Filter commands.
//
// Each key holds one fixed-size bloom.Filter sized at creation time, either
// explicitly by BF.RESERVE or implicitly by the first BF.ADD/BF.MADD with the
// server's default error rate and capacity. Filters never grow: inserting
// past capacity degrades the false positive rate, which BF.INFO reports.
//
// Concurrency Strategy
// ====================
// - BF.RESERVE, BF.ADD, BF.MADD: Mutate() (exclusive shard lock)
// - BF.EXISTS, BF.MEXISTS, BF.INFO: View() (shared shard lock)

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"filters.lopezb.com/internal/filters/bloom"
)

// maxFilterBits caps a single filter at 2GiB of bits.
const maxFilterBits uint64 = 1 << 34

var (
	errItemExists     = errors.New("ERR item exists")
	errFilterTooLarge = errors.New("filter too large")
)

// newEntry builds an empty filter with the server's hash algorithm.
func (app *application) newEntry(errorRate float64, capacity uint64) (*Entry, error) {
	_, bits, err := bloom.EstimateParameters(errorRate, capacity)
	if err != nil {
		return nil, err
	}
	if uint64(bits) > maxFilterBits {
		return nil, fmt.Errorf("%w: %d bits", errFilterTooLarge, bits)
	}

	filter, err := bloom.New(errorRate, capacity, bloom.WithAlgorithm(app.config.Filters.Algorithm))
	if err != nil {
		return nil, err
	}
	return &Entry{Filter: filter, ErrorRate: errorRate, Capacity: capacity}, nil
}

// handleBFReserve handles the BF.RESERVE command.
// Syntax: BF.RESERVE key error_rate capacity
func (app *application) handleBFReserve(w io.Writer, args []string) {
	if len(args) != 3 {
		wrongNumberOfArgs(w, "BF.RESERVE")
		return
	}

	key := args[0]

	errorRate, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		_ = writeError(w, "ERR bad error rate")
		return
	}
	if !(errorRate > 0 && errorRate < 1) {
		_ = writeError(w, "ERR (0 < error rate range < 1)")
		return
	}

	capacity, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil || capacity == 0 {
		_ = writeError(w, "ERR (capacity should be larger than 0)")
		return
	}

	err = app.store.Mutate(key, func(e *Entry) (*Entry, error) {
		if e != nil {
			return nil, errItemExists
		}
		return app.newEntry(errorRate, capacity)
	})
	if err != nil {
		if errors.Is(err, errItemExists) {
			_ = writeError(w, err.Error())
			return
		}
		app.logger.Debug("BF.RESERVE rejected", "key", key, "error", err)
		_ = writeError(w, fmt.Sprintf("ERR %v", err))
		return
	}

	_ = writeSimpleString(w, "OK")
}

// addItems inserts items into the filter under key, creating it with the
// configured defaults when missing. The result holds 1 for each item that
// was not already reported present.
func (app *application) addItems(key string, items []string) ([]int64, error) {
	results := make([]int64, len(items))

	err := app.store.Mutate(key, func(e *Entry) (*Entry, error) {
		if e == nil {
			var err error
			e, err = app.newEntry(app.config.Filters.ErrorRate, app.config.Filters.Capacity)
			if err != nil {
				return nil, err
			}
		}

		for i, item := range items {
			k := bloom.String(item)
			if e.Filter.Contains(k) {
				continue
			}
			e.Filter.Put(k)
			e.Inserted++
			results[i] = 1
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	var added uint64
	for _, r := range results {
		added += uint64(r)
	}
	app.metrics.ItemsAdded.Add(added)

	return results, nil
}

// handleBFAdd handles the BF.ADD command.
// Syntax: BF.ADD key item
//
// Returns 1 if the element was added to the filter, or 0 if it was already present.
func (app *application) handleBFAdd(w io.Writer, args []string) {
	if len(args) != 2 {
		wrongNumberOfArgs(w, "BF.ADD")
		return
	}

	results, err := app.addItems(args[0], args[1:])
	if err != nil {
		app.logger.Error("BF.ADD failed", "key", args[0], "error", err)
		_ = writeError(w, fmt.Sprintf("ERR %v", err))
		return
	}

	_ = writeInteger(w, results[0])
}

// handleBFMAdd handles the BF.MADD command.
// Syntax: BF.MADD key item [item ...]
func (app *application) handleBFMAdd(w io.Writer, args []string) {
	if len(args) < 2 {
		wrongNumberOfArgs(w, "BF.MADD")
		return
	}

	results, err := app.addItems(args[0], args[1:])
	if err != nil {
		app.logger.Error("BF.MADD failed", "key", args[0], "error", err)
		_ = writeError(w, fmt.Sprintf("ERR %v", err))
		return
	}

	_ = writeIntegerArray(w, results)
}

// checkItems reports membership for each item. A missing key reports 0 for
// every item.
func (app *application) checkItems(key string, items []string) []int64 {
	results := make([]int64, len(items))

	_ = app.store.View(key, func(e *Entry) error {
		if e == nil {
			return nil
		}
		for i, item := range items {
			if e.Filter.Contains(bloom.String(item)) {
				results[i] = 1
			}
		}
		return nil
	})

	return results
}

// handleBFExists handles the BF.EXISTS command.
// Syntax: BF.EXISTS key item
func (app *application) handleBFExists(w io.Writer, args []string) {
	if len(args) != 2 {
		wrongNumberOfArgs(w, "BF.EXISTS")
		return
	}

	_ = writeInteger(w, app.checkItems(args[0], args[1:])[0])
}

// handleBFMExists handles the BF.MEXISTS command.
// Syntax: BF.MEXISTS key item [item ...]
func (app *application) handleBFMExists(w io.Writer, args []string) {
	if len(args) < 2 {
		wrongNumberOfArgs(w, "BF.MEXISTS")
		return
	}

	_ = writeIntegerArray(w, app.checkItems(args[0], args[1:]))
}

// handleBFInfo handles the BF.INFO command.
// Syntax: BF.INFO key
func (app *application) handleBFInfo(w io.Writer, args []string) {
	if len(args) != 1 {
		wrongNumberOfArgs(w, "BF.INFO")
		return
	}

	var buf []byte
	found := false

	_ = app.store.View(args[0], func(e *Entry) error {
		if e == nil {
			return nil
		}
		found = true

		f := e.Filter
		buf = appendArrayHeader(make([]byte, 0, 256), 16)
		buf = appendSimpleString(buf, "Capacity")
		buf = appendInteger(buf, int64(e.Capacity))
		buf = appendSimpleString(buf, "Error rate")
		buf = appendBulkString(buf, strconv.FormatFloat(e.ErrorRate, 'g', -1, 64))
		buf = appendSimpleString(buf, "Number of hash functions")
		buf = appendInteger(buf, int64(f.HashCount()))
		buf = appendSimpleString(buf, "Number of bits")
		buf = appendInteger(buf, int64(f.BitCount()))
		buf = appendSimpleString(buf, "Bits set")
		buf = appendInteger(buf, int64(f.SetBits()))
		buf = appendSimpleString(buf, "Items inserted")
		buf = appendInteger(buf, int64(e.Inserted))
		buf = appendSimpleString(buf, "Estimated false positive rate")
		buf = appendBulkString(buf, strconv.FormatFloat(f.EstimatedFalsePositiveRate(), 'g', 6, 64))
		buf = appendSimpleString(buf, "Hash algorithm")
		buf = appendBulkString(buf, f.Algorithm())
		return nil
	})

	if !found {
		_ = writeError(w, "ERR not found")
		return
	}
	_, _ = w.Write(buf)
}
