package platform

import (
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// NewVGAConsole returns a writer that encodes UTF-8 text into the code page
// 437 character set of VGA text mode before passing it to w. Runes without a
// CP437 glyph are replaced rather than rejected.
func NewVGAConsole(w io.Writer) io.Writer {
	enc := encoding.ReplaceUnsupported(charmap.CodePage437.NewEncoder())
	return enc.Writer(w)
}
