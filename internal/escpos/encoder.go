// internal/escpos/encoder.go
package escpos

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"pos-print-bridge/internal/model"
)

// Encode converts a stream into the byte sequence sent to the printer.
// Text is encoded in CP437; characters outside the table print as '?'.
func Encode(s Stream) ([]byte, error) {
	var buf bytes.Buffer

	for i, op := range s.ops {
		switch op.Kind {
		case OpInitialize:
			buf.Write(ESC_POS_COMMANDS.INITIALIZE)
		case OpCodepage:
			buf.Write(ESC_POS_COMMANDS.SELECT_CHARSET_PC437)
		case OpAlign:
			buf.Write(alignCommand(op.Alignment))
		case OpBold:
			if op.Bold {
				buf.Write(ESC_POS_COMMANDS.TEXT_BOLD_ON)
			} else {
				buf.Write(ESC_POS_COMMANDS.TEXT_BOLD_OFF)
			}
		case OpText:
			buf.Write(EncodeText(op.Text))
			buf.Write(ESC_POS_COMMANDS.LINE_FEED)
		case OpImage:
			if op.Image == nil {
				return nil, fmt.Errorf("op %d: image command without raster", i)
			}
			buf.Write(op.Image.Data)
		case OpNewline:
			buf.Write(ESC_POS_COMMANDS.LINE_FEED)
		case OpCut:
			buf.Write(ESC_POS_COMMANDS.CUT_FULL)
		default:
			return nil, fmt.Errorf("op %d: unknown command kind %d", i, op.Kind)
		}
	}

	return buf.Bytes(), nil
}

// EncodeText maps text to CP437 bytes
func EncodeText(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := charmap.CodePage437.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

func alignCommand(a model.Alignment) []byte {
	switch a {
	case model.AlignCenter:
		return ESC_POS_COMMANDS.ALIGN_CENTER
	case model.AlignRight:
		return ESC_POS_COMMANDS.ALIGN_RIGHT
	default:
		return ESC_POS_COMMANDS.ALIGN_LEFT
	}
}
