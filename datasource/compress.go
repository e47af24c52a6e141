package datasource

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/IvanBrykalov/lodcache/cache"
)

// Codec selects the block compression of stored objects.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecLZ4
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return "none"
	}
}

// ParseCodec maps a configuration string to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	}
	return CodecNone, fmt.Errorf("datasource: unknown codec %q", s)
}

// ErrCorrupt reports a block that cannot be decoded.
var ErrCorrupt = errors.New("datasource: corrupt block")

// Block layout: [raw size uint32][stored size uint32][payload].
// A stored size of 0 means the payload is raw.
const blockHeaderSize = 8

// lz4MaxRatio bounds how much one lz4 payload byte can expand.
const lz4MaxRatio = 255

// MaxBlockSize caps the decoded size Decode accepts from a block header.
var MaxBlockSize = 1 << 30

var (
	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoders.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode compresses data into a block. Incompressible data is stored raw.
func Encode(codec Codec, data []byte) ([]byte, error) {
	var payload []byte
	switch codec {
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		payload = buf[:n]
	case CodecZstd:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(data, nil)
		zstdEncoders.Put(enc)
	}

	out := make([]byte, blockHeaderSize, blockHeaderSize+len(data))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	if len(payload) == 0 || len(payload) >= len(data) {
		return append(out, data...), nil
	}
	binary.LittleEndian.PutUint32(out[4:], uint32(len(payload)))
	return append(out, payload...), nil
}

// Decode reverses Encode.
func Decode(codec Codec, block []byte) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(block))
	}
	raw := int(binary.LittleEndian.Uint32(block[0:]))
	stored := int(binary.LittleEndian.Uint32(block[4:]))
	body := block[blockHeaderSize:]

	if stored == 0 {
		if len(body) < raw {
			return nil, fmt.Errorf("%w: short raw block", ErrCorrupt)
		}
		return body[:raw], nil
	}
	if len(body) < stored {
		return nil, fmt.Errorf("%w: short payload", ErrCorrupt)
	}
	body = body[:stored]
	if raw > MaxBlockSize {
		return nil, fmt.Errorf("%w: raw size %d exceeds limit %d", ErrCorrupt, raw, MaxBlockSize)
	}

	switch codec {
	case CodecLZ4:
		if raw > stored*lz4MaxRatio+16 {
			return nil, fmt.Errorf("%w: raw size %d too large for %d byte payload", ErrCorrupt, raw, stored)
		}
		out := make([]byte, raw)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if n != raw {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}
		return out, nil
	case CodecZstd:
		dec := getZstdDecoder()
		defer zstdDecoders.Put(dec)
		out, err := dec.DecodeAll(body, make([]byte, 0, raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if len(out) != raw {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: compressed block with codec %s", ErrCorrupt, codec)
}

// Compressed decodes blocks read from another source.
type Compressed struct {
	src   Source
	codec Codec
}

// NewCompressed wraps src.
func NewCompressed(src Source, codec Codec) *Compressed {
	return &Compressed{src: src, codec: codec}
}

func (c *Compressed) Read(ctx context.Context, id cache.ID) ([]byte, error) {
	block, err := c.src.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := Decode(c.codec, block)
	if err != nil {
		return nil, fmt.Errorf("id %d: %w", uint64(id), err)
	}
	return data, nil
}
