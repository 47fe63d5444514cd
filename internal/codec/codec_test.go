// internal/codec/codec_test.go
package codec

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestStripDataURI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data:image/png;base64,iVBORw0KGgo", "iVBORw0KGgo"},
		{"DATA:image/jpeg;base64,/9j/", "/9j/"},
		{"  iVBORw0KGgo  ", "iVBORw0KGgo"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripDataURI(tt.in); got != tt.want {
			t.Errorf("StripDataURI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeBase64Lenient(t *testing.T) {
	want := []byte("hello printer")
	encoded := EncodeBase64(want)

	inputs := []string{
		encoded,
		"data:text/plain;base64," + encoded,
		encoded[:10] + "\n " + encoded[10:],
		"aGVsbG8gcHJpbnRlcg", // unpadded
	}
	for _, in := range inputs {
		got, err := DecodeBase64(in)
		if err != nil {
			t.Fatalf("DecodeBase64(%q) error: %v", in, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("DecodeBase64(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChunks(t *testing.T) {
	data := make([]byte, 600)
	chunks := Chunks(data, DefaultChunkSize)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 256 || len(chunks[1]) != 256 || len(chunks[2]) != 88 {
		t.Errorf("unexpected chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if got := Chunks(nil, 256); len(got) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(got))
	}
}

func TestWriteChunkedStopsOnError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := WriteChunked(context.Background(), make([]byte, 700), 256, func(_ context.Context, b []byte) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
