// Package codec transforms stored values on their way into and out
// of an engine.  A store is written with exactly one codec for its
// whole life.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec defines the interface for value encodings.
type Codec interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

const (
	None   = "none"
	Snappy = "snappy"
	Zstd   = "zstd"
	LZ4    = "lz4"
)

var codecs = map[string]Codec{
	None:   noneCodec{},
	Snappy: snappyCodec{},
	Zstd:   &zstdCodec{},
	LZ4:    lz4Codec{},
}

// Lookup returns the codec registered under name.  The empty name
// means None.
func Lookup(name string) (Codec, error) {
	if name == "" {
		name = None
	}
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", name)
	}
	return c, nil
}

// Names lists the registered codec names.
func Names() []string {
	return []string{None, Snappy, Zstd, LZ4}
}

type noneCodec struct{}

func (noneCodec) Name() string                       { return None }
func (noneCodec) Encode(data []byte) ([]byte, error) { return data, nil }
func (noneCodec) Decode(data []byte) ([]byte, error) { return data, nil }

type snappyCodec struct{}

func (snappyCodec) Name() string { return Snappy }

func (snappyCodec) Encode(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) Decode(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

// zstdCodec shares one encoder and one decoder; EncodeAll and
// DecodeAll are safe for concurrent use.
type zstdCodec struct {
	once    sync.Once
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	err     error
}

func (c *zstdCodec) Name() string { return Zstd }

func (c *zstdCodec) init() error {
	c.once.Do(func() {
		c.encoder, c.err = zstd.NewWriter(nil)
		if c.err != nil {
			return
		}
		c.decoder, c.err = zstd.NewReader(nil)
	})
	return c.err
}

func (c *zstdCodec) Encode(data []byte) ([]byte, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(data, nil), nil
}

func (c *zstdCodec) Decode(data []byte) ([]byte, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	return c.decoder.DecodeAll(data, nil)
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return LZ4 }

func (lz4Codec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)

	_, err := writer.Write(data)
	if err != nil {
		return nil, err
	}

	err = writer.Close()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (lz4Codec) Decode(data []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(data))
	return io.ReadAll(reader)
}
