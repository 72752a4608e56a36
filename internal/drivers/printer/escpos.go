package printer

import (
	"bytes"
	"strings"
)

// ESC/POS primitives shared by the epson and generic dialects.
const (
	escInit      = "\x1b@"   // ESC @  reset to power-on defaults
	escAlignArg  = "\x1ba"   // ESC a n  0=left 1=center 2=right
	escBoldArg   = "\x1bE"   // ESC E n  0=off 1=on
	escFeedLines = "\x1bd"   // ESC d n  feed n lines
	gsCutPartial = "\x1dV\x01" // GS V 1  partial cut
)

const (
	alignLeft   = 0
	alignCenter = 1
	alignRight  = 2
)

// job buffers a complete print document. Nothing is transmitted until
// the job is flushed in one write, so a rendering error never leaves
// half a document on the paper.
type job struct {
	buf   bytes.Buffer
	width int
}

func newJob(width int) *job {
	j := &job{width: width}
	j.buf.WriteString(escInit)
	return j
}

func (j *job) align(n byte) {
	j.buf.WriteString(escAlignArg)
	j.buf.WriteByte(n)
}

func (j *job) bold(on bool) {
	j.buf.WriteString(escBoldArg)
	if on {
		j.buf.WriteByte(1)
	} else {
		j.buf.WriteByte(0)
	}
}

// text writes one normalized, width-bounded line.
func (j *job) text(s string) {
	j.buf.WriteString(truncate(normalizeText(s), j.width))
	j.buf.WriteByte('\n')
}

// textPair writes left- and right-justified text on one line, padding
// the middle with spaces. The left side yields to the right side when
// the line overflows.
func (j *job) textPair(left, right string) {
	left = normalizeText(left)
	right = normalizeText(right)
	pad := j.width - len(left) - len(right)
	if pad < 1 {
		left = truncate(left, max(j.width-len(right)-1, len(truncationMarker)))
		pad = max(j.width-len(left)-len(right), 1)
	}
	j.buf.WriteString(left + strings.Repeat(" ", pad) + right)
	j.buf.WriteByte('\n')
}

func (j *job) rule() {
	j.buf.WriteString(strings.Repeat("-", j.width))
	j.buf.WriteByte('\n')
}

func (j *job) feed(lines byte) {
	j.buf.WriteString(escFeedLines)
	j.buf.WriteByte(lines)
}

func (j *job) cut() {
	j.feed(4)
	j.buf.WriteString(gsCutPartial)
}

func (j *job) bytes() []byte {
	return j.buf.Bytes()
}
