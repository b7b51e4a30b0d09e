package codec

import "io"

type noneCodec struct{}

// None returns a codec that stores data uncompressed.
func None() Codec {
	return noneCodec{}
}

func (noneCodec) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

func (noneCodec) Writer(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (noneCodec) Extension() string { return "" }

func (noneCodec) Name() string { return "none" }

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
