package dataset

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/tradai/core/internal/market"
)

// WriteDay writes one (venue, symbol, channel, day)'s envelopes to its
// catalog file as a single Arrow IPC stream, optionally zstd-compressed.
// The stream format (not the seekable File format) is used because a
// zstd writer isn't seekable.
func WriteDay(cat *Catalog, venue, symbol string, chType market.ChannelType, day time.Time, envs []market.Envelope) error {
	path := cat.PathFor(venue, symbol, chType, day)
	w, closeFn, err := openWriter(path)
	if err != nil {
		return fmt.Errorf("dataset: open writer %s: %w", path, err)
	}
	defer closeFn()

	schema := SchemaFor(chType)
	iw := ipc.NewWriter(w, ipc.WithSchema(schema))
	defer iw.Close()

	rec := recordFor(chType, envs)
	defer rec.Release()
	if rec.NumRows() == 0 {
		return nil
	}
	if err := iw.Write(rec); err != nil {
		return fmt.Errorf("dataset: write record %s: %w", path, err)
	}
	return nil
}

// ReadDay reads one day file back into envelopes, decoding every record
// batch in the stream according to chType.
func ReadDay(cat *Catalog, venue, symbol string, chType market.ChannelType, day time.Time) ([]market.Envelope, error) {
	path := cat.PathFor(venue, symbol, chType, day)
	r, closeFn, err := openReader(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open reader %s: %w", path, err)
	}
	defer closeFn()

	ir, err := ipc.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("dataset: new ipc reader %s: %w", path, err)
	}
	defer ir.Release()

	var out []market.Envelope
	for ir.Next() {
		rec := ir.Record()
		out = append(out, decodeRecord(chType, symbol, rec)...)
	}
	if err := ir.Err(); err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	return out, nil
}

func recordFor(chType market.ChannelType, envs []market.Envelope) arrow.Record {
	switch chType {
	case market.ChannelTrades:
		return BuildTradesRecord(envs)
	case market.ChannelOrderbooks:
		return BuildOrderbooksRecord(envs)
	default:
		return BuildCandlesRecord(envs)
	}
}

func decodeRecord(chType market.ChannelType, symbol string, rec arrow.Record) []market.Envelope {
	switch chType {
	case market.ChannelTrades:
		return ReadTradesRecord(rec)
	case market.ChannelOrderbooks:
		return ReadOrderbooksRecord(rec)
	default:
		return ReadCandlesRecord(symbol, rec)
	}
}
