package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"sounding_parser/internal/bulletin"
)

// EncodingZstd is the Content-Encoding value of a zstd-compressed payload.
const EncodingZstd = "zstd"

// ErrEmptyPayload is returned for payloads without any report text.
var ErrEmptyPayload = errors.New("payload carries no report")

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var decoderPool = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
		}
		return d
	},
}

// Decompress returns data unchanged unless encoding is zstd or data starts with
// the zstd frame magic.
func Decompress(data []byte, encoding string) ([]byte, error) {
	if !strings.EqualFold(encoding, EncodingZstd) && !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}

	d := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(d)

	out, err := d.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// DecodePayload turns one bus payload into report messages. A payload is a
// JSON envelope (flat or wrapped) or raw bulletin text.
func DecodePayload(data []byte, encoding string) ([]*bulletin.Message, error) {
	data, err := Decompress(data, encoding)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}

	var msg *bulletin.Message
	if trimmed[0] == '{' {
		msg, err = bulletin.ParseJSON(trimmed)
		if err != nil {
			return nil, err
		}
	} else {
		msg = &bulletin.Message{Text: string(trimmed)}
	}

	// A single report keeps the text as sent. Bulletins are cut per report.
	reports := bulletin.Reports(msg.Text)
	if len(reports) <= 1 && msg.Part != "" {
		return []*bulletin.Message{msg}, nil
	}
	if len(reports) == 0 {
		return nil, ErrEmptyPayload
	}

	msgs := make([]*bulletin.Message, 0, len(reports))
	for _, r := range reports {
		m := *msg
		m.Part = r.Part
		m.Text = r.Text
		msgs = append(msgs, &m)
	}
	return msgs, nil
}
