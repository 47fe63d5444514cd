// internal/escpos/stream.go
package escpos

import "pos-print-bridge/internal/model"

// OpKind identifies a printer command in a stream
type OpKind int

const (
	OpInitialize OpKind = iota
	OpCodepage
	OpAlign
	OpBold
	OpText
	OpImage
	OpNewline
	OpCut
)

var opNames = map[OpKind]string{
	OpInitialize: "initialize",
	OpCodepage:   "codepage",
	OpAlign:      "align",
	OpBold:       "bold",
	OpText:       "text",
	OpImage:      "image",
	OpNewline:    "newline",
	OpCut:        "cut",
}

func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	return "unknown"
}

// Op is a single printer command. Only the fields relevant to Kind are set.
type Op struct {
	Kind      OpKind
	Alignment model.Alignment
	Bold      bool
	Text      string
	Image     *Raster
}

// Stream is an immutable ordered list of printer commands
type Stream struct {
	ops []Op
}

// Ops returns a copy of the commands in order, rasters included
func (s Stream) Ops() []Op {
	out := make([]Op, len(s.ops))
	copy(out, s.ops)
	for i := range out {
		out[i].Image = out[i].Image.clone()
	}
	return out
}

// Len returns the number of commands
func (s Stream) Len() int {
	return len(s.ops)
}

// Count returns how many commands of the given kind the stream holds
func (s Stream) Count(kind OpKind) int {
	n := 0
	for _, op := range s.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Lines returns the text of every text command in order
func (s Stream) Lines() []string {
	var lines []string
	for _, op := range s.ops {
		if op.Kind == OpText {
			lines = append(lines, op.Text)
		}
	}
	return lines
}

// Builder accumulates commands. It is not safe for concurrent use.
type Builder struct {
	ops []Op
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{ops: make([]Op, 0, 64)}
}

// Initialize resets the printer (ESC @)
func (b *Builder) Initialize() *Builder {
	b.ops = append(b.ops, Op{Kind: OpInitialize})
	return b
}

// Codepage selects CP437, the only table the encoder emits
func (b *Builder) Codepage() *Builder {
	b.ops = append(b.ops, Op{Kind: OpCodepage})
	return b
}

// Align sets the justification for the following lines
func (b *Builder) Align(a model.Alignment) *Builder {
	b.ops = append(b.ops, Op{Kind: OpAlign, Alignment: a})
	return b
}

// Bold turns emphasized printing on or off
func (b *Builder) Bold(on bool) *Builder {
	b.ops = append(b.ops, Op{Kind: OpBold, Bold: on})
	return b
}

// Line adds a text line; the encoder terminates it with a line feed
func (b *Builder) Line(text string) *Builder {
	b.ops = append(b.ops, Op{Kind: OpText, Text: text})
	return b
}

// Image adds a copy of the raster
func (b *Builder) Image(r *Raster) *Builder {
	b.ops = append(b.ops, Op{Kind: OpImage, Image: r.clone()})
	return b
}

// Newline adds a line feed
func (b *Builder) Newline() *Builder {
	b.ops = append(b.ops, Op{Kind: OpNewline})
	return b
}

// Newlines adds n blank lines
func (b *Builder) Newlines(n int) *Builder {
	for i := 0; i < n; i++ {
		b.Newline()
	}
	return b
}

// Cut adds a full paper cut
func (b *Builder) Cut() *Builder {
	b.ops = append(b.ops, Op{Kind: OpCut})
	return b
}

// Build freezes the accumulated commands into a Stream
func (b *Builder) Build() Stream {
	ops := make([]Op, len(b.ops))
	copy(ops, b.ops)
	return Stream{ops: ops}
}
