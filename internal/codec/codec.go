// Package codec provides compression for stored reports and evaluation shards.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrUnknownCodec indicates a codec name that is not registered.
var ErrUnknownCodec = errors.New("codec: unknown codec")

// Codec provides compression and decompression functionality.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Extension returns the file extension without dot (e.g., "zst", "gz").
	// Returns empty string for no compression.
	Extension() string
	// Name returns the configuration name of the codec.
	Name() string
}

// ByName returns the codec registered as name ("zstd", "gzip" or "none").
func ByName(name string) (Codec, error) {
	switch name {
	case "zstd", "zst", "":
		return Zstd(), nil
	case "gzip", "gz":
		return Gzip(), nil
	case "none", "noop":
		return None(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// Encode compresses data with c.
func Encode(c Codec, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.Writer(&buf)
	if err != nil {
		return nil, fmt.Errorf("create %s writer: %w", c.Name(), err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("%s encode: %w", c.Name(), err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s encode: %w", c.Name(), err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses data with c.
func Decode(c Codec, data []byte) ([]byte, error) {
	r, err := c.Reader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create %s reader: %w", c.Name(), err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s decode: %w", c.Name(), err)
	}
	return out, nil
}
