package contentstore

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encoder converts object payloads to and from their stored form.
type Encoder interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// ZstdEncoder stores byte and string payloads zstd-compressed.
// Decoded payloads are always []byte.
type ZstdEncoder struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdEncoder creates an encoder. The underlying codecs are safe for
// concurrent use through EncodeAll/DecodeAll.
func NewZstdEncoder() (*ZstdEncoder, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return &ZstdEncoder{enc: enc, dec: dec}, nil
}

func (z *ZstdEncoder) Encode(v any) ([]byte, error) {
	var raw []byte
	switch p := v.(type) {
	case []byte:
		raw = p
	case string:
		raw = []byte(p)
	default:
		return nil, fmt.Errorf("encode object: unsupported payload type %T", v)
	}
	return z.enc.EncodeAll(raw, nil), nil
}

func (z *ZstdEncoder) Decode(b []byte) (any, error) {
	out, err := z.dec.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return out, nil
}

// Close releases the codec resources.
func (z *ZstdEncoder) Close() {
	z.enc.Close()
	z.dec.Close()
}
