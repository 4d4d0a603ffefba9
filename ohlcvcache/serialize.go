package ohlcvcache

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
)

// serializeFrame compresses frame into a binary blob that round-trips
// exactly through deserializeFrame (index order, timestamps, and values).
func serializeFrame(frame Frame) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gw).Encode(frame); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("flush compressed frame: %w", err)
	}
	return buf.Bytes(), nil
}

func deserializeFrame(blob []byte) (Frame, error) {
	gr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return Frame{}, fmt.Errorf("open compressed frame: %w", err)
	}
	defer gr.Close()

	var frame Frame
	if err := gob.NewDecoder(gr).Decode(&frame); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return frame, nil
}
