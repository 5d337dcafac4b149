package httpsink

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Body encodings and compressions. Empty values select JSON without
// compression.
const (
	EncodingJSON = "json"
	EncodingCBOR = "cbor"

	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// Payload is the request body for one batch.
type Payload struct {
	BatchID string  `json:"batch_id" cbor:"batch_id"`
	Group   string  `json:"log_group" cbor:"log_group"`
	Stream  string  `json:"log_stream" cbor:"log_stream"`
	Region  string  `json:"region,omitempty" cbor:"region,omitempty"`
	Events  []Event `json:"events" cbor:"events"`
}

// Event is one line; Timestamp is milliseconds since the epoch.
type Event struct {
	Timestamp int64  `json:"timestamp" cbor:"timestamp"`
	Message   string `json:"message" cbor:"message"`
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	// Deterministic encoding so identical batches give identical bodies.
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("httpsink: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("httpsink: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("httpsink: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("httpsink: zstd decoder initialization failed: " + err.Error())
	}
}

func contentType(encoding string) string {
	if encoding == EncodingCBOR {
		return "application/cbor"
	}
	return "application/json"
}

func encode(encoding string, p Payload) ([]byte, error) {
	switch encoding {
	case EncodingCBOR:
		return cborEnc.Marshal(p)
	case EncodingJSON, "":
		return json.Marshal(p)
	default:
		return nil, fmt.Errorf("httpsink: unknown encoding %q", encoding)
	}
}

// Decode parses a request body produced by the sink. Receivers and tests use
// it to read batches back.
func Decode(encoding, compression string, body []byte) (Payload, error) {
	raw, err := decompress(compression, body)
	if err != nil {
		return Payload{}, err
	}
	var p Payload
	switch encoding {
	case EncodingCBOR:
		err = cborDec.Unmarshal(raw, &p)
	case EncodingJSON, "":
		err = json.Unmarshal(raw, &p)
	default:
		err = fmt.Errorf("httpsink: unknown encoding %q", encoding)
	}
	return p, err
}

func compress(compression string, data []byte) ([]byte, error) {
	switch compression {
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("httpsink: lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("httpsink: lz4 compress: %w", err)
		}
		return buf.Bytes(), nil
	case CompressionNone, "":
		return data, nil
	default:
		return nil, fmt.Errorf("httpsink: unknown compression %q", compression)
	}
}

func decompress(compression string, data []byte) ([]byte, error) {
	switch compression {
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("httpsink: zstd decompress: %w", err)
		}
		return out, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(lz4.NewReader(bytes.NewReader(data))); err != nil {
			return nil, fmt.Errorf("httpsink: lz4 decompress: %w", err)
		}
		return buf.Bytes(), nil
	case CompressionNone, "":
		return data, nil
	default:
		return nil, fmt.Errorf("httpsink: unknown compression %q", compression)
	}
}
