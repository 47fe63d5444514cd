// internal/codec/codec.go
package codec

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// DefaultChunkSize is the largest write handed to a transport in chunked mode
const DefaultChunkSize = 256

// EncodeBase64 returns the standard padded base64 form of data
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// StripDataURI removes a "data:<mime>;base64," prefix when present
func StripDataURI(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), "data:") {
		return s
	}
	if idx := strings.Index(s, ","); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// DecodeBase64 decodes leniently: data-URI prefix, whitespace and any other
// character outside the alphabet are dropped, padding is optional.
func DecodeBase64(s string) ([]byte, error) {
	s = StripDataURI(s)

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/':
			sb.WriteRune(r)
		case r == '-':
			sb.WriteByte('+')
		case r == '_':
			sb.WriteByte('/')
		}
	}
	clean := sb.String()

	// a single dangling symbol cannot carry a byte
	if len(clean)%4 == 1 {
		clean = clean[:len(clean)-1]
	}

	data, err := base64.RawStdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, nil
}

// Chunks splits data into consecutive slices of at most size bytes
func Chunks(data []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

// WriteChunked sends data through write in chunks, stopping at the first error
func WriteChunked(ctx context.Context, data []byte, size int, write func(context.Context, []byte) error) error {
	for i, chunk := range Chunks(data, size) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := write(ctx, chunk); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return nil
}
