// internal/escpos/command.go
package escpos

// ESC_POS_COMMANDS contains the ESC/POS command definitions used for receipts
var ESC_POS_COMMANDS = struct {
	// Basic commands
	INITIALIZE []byte

	// Text formatting
	TEXT_BOLD_ON  []byte
	TEXT_BOLD_OFF []byte

	// Text alignment
	ALIGN_LEFT   []byte
	ALIGN_CENTER []byte
	ALIGN_RIGHT  []byte

	// Character sets
	SELECT_CHARSET_PC437 []byte

	// Paper handling
	LINE_FEED            []byte
	LINE_SPACING_24      []byte
	LINE_SPACING_DEFAULT []byte

	// Cutting
	CUT_FULL []byte

	// Graphics
	RASTER_IMAGE     []byte // + m xL xH yL yH data
	BIT_IMAGE_COLUMN []byte // + nL nH data (24-dot double density)
}{
	// Basic commands
	INITIALIZE: []byte{0x1B, 0x40}, // ESC @

	// Text formatting
	TEXT_BOLD_ON:  []byte{0x1B, 0x45, 0x01}, // ESC E 1
	TEXT_BOLD_OFF: []byte{0x1B, 0x45, 0x00}, // ESC E 0

	// Text alignment
	ALIGN_LEFT:   []byte{0x1B, 0x61, 0x00}, // ESC a 0
	ALIGN_CENTER: []byte{0x1B, 0x61, 0x01}, // ESC a 1
	ALIGN_RIGHT:  []byte{0x1B, 0x61, 0x02}, // ESC a 2

	// Character sets
	SELECT_CHARSET_PC437: []byte{0x1B, 0x74, 0x00}, // ESC t 0

	// Paper handling
	LINE_FEED:            []byte{0x0A},             // LF
	LINE_SPACING_24:      []byte{0x1B, 0x33, 0x18}, // ESC 3 24
	LINE_SPACING_DEFAULT: []byte{0x1B, 0x32},       // ESC 2

	// Cutting
	CUT_FULL: []byte{0x1D, 0x56, 0x00}, // GS V 0

	// Graphics
	RASTER_IMAGE:     []byte{0x1D, 0x76, 0x30}, // GS v 0
	BIT_IMAGE_COLUMN: []byte{0x1B, 0x2A, 0x21}, // ESC * 33
}

// Reset returns a fresh copy of the initialize command, sent before each job
func Reset() []byte {
	return append([]byte(nil), ESC_POS_COMMANDS.INITIALIZE...)
}
