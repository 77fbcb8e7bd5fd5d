package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// ErrChecksum is returned when a blob's content does not match its hash.
var ErrChecksum = errors.New("storage: checksum mismatch")

// Compression identifies how a blob's payload is compressed. The values are
// stored in the database and must not change.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

// String returns the name used by ParseCompression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("storage: unknown compression %q", name)
	}
}

// Blob is an encoded value: deterministic CBOR, optionally compressed, with
// a BLAKE3-256 hash of Data.
type Blob struct {
	Codec Compression
	// Size is the length of the uncompressed CBOR.
	Size int
	Hash [32]byte
	Data []byte
}

// HashString returns the hash in hex.
func (b Blob) HashString() string {
	return hex.EncodeToString(b.Hash[:])
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("storage: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("storage: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("storage: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("storage: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode marshals v and compresses it with c. Payloads that do not shrink
// are stored uncompressed, so the returned Codec may be CompressionNone.
func Encode(v any, c Compression) (Blob, error) {
	raw, err := encMode.Marshal(v)
	if err != nil {
		return Blob{}, fmt.Errorf("storage: encode: %w", err)
	}
	data, codec := raw, CompressionNone
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		if out, ok := compressLZ4(raw); ok {
			data, codec = out, CompressionLZ4
		}
	case CompressionZstd:
		if out := zstdEncoder.EncodeAll(raw, nil); len(out) < len(raw) {
			data, codec = out, CompressionZstd
		}
	default:
		return Blob{}, fmt.Errorf("storage: encode: unsupported compression %v", c)
	}
	return Blob{Codec: codec, Size: len(raw), Hash: blake3.Sum256(data), Data: data}, nil
}

// Decode verifies b's hash, decompresses it and unmarshals into v.
func Decode(b Blob, v any) error {
	if blake3.Sum256(b.Data) != b.Hash {
		return ErrChecksum
	}
	raw, err := decompress(b)
	if err != nil {
		return fmt.Errorf("storage: decode: %w", err)
	}
	if err := decMode.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("storage: decode: %w", err)
	}
	return nil
}

func compressLZ4(data []byte) ([]byte, bool) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	// Zero means incompressible.
	if err != nil || n == 0 || n >= len(data) {
		return nil, false
	}
	return dst[:n], true
}

func decompress(b Blob) ([]byte, error) {
	switch b.Codec {
	case CompressionNone:
		if len(b.Data) != b.Size {
			return nil, fmt.Errorf("size %d does not match expected %d", len(b.Data), b.Size)
		}
		return b.Data, nil
	case CompressionLZ4:
		dst := make([]byte, b.Size)
		n, err := lz4.UncompressBlock(b.Data, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		if n != b.Size {
			return nil, fmt.Errorf("lz4: got %d bytes, expected %d", n, b.Size)
		}
		return dst, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(b.Data, make([]byte, 0, b.Size))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if len(out) != b.Size {
			return nil, fmt.Errorf("zstd: got %d bytes, expected %d", len(out), b.Size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression %v", b.Codec)
	}
}
