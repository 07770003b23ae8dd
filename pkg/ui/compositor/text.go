package compositor

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/odvcencio/glint/pkg/ui/geom"
)

// DefaultFace is the fixed-width face used when none is configured.
var DefaultFace font.Face = basicfont.Face7x13

// cellWidth returns the advance of one text column in pixels.
func cellWidth(face font.Face) int {
	adv, ok := face.GlyphAdvance('M')
	if !ok {
		return 7
	}
	return adv.Ceil()
}

// textWidth measures s in pixels. East Asian wide runes take two columns.
func textWidth(face font.Face, s string) int {
	return runewidth.StringWidth(s) * cellWidth(face)
}

// wrapText wraps text to the given number of columns.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return nil
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		var line strings.Builder
		lineLen := 0
		for _, word := range words {
			wordLen := runewidth.StringWidth(word)

			if lineLen > 0 && lineLen+1+wordLen > width {
				lines = append(lines, line.String())
				line.Reset()
				lineLen = 0
			}

			// Words wider than the box are split across lines.
			for lineLen == 0 && wordLen > width {
				head := runewidth.Truncate(word, width, "")
				if head == "" {
					head = string([]rune(word)[:1])
				}
				lines = append(lines, head)
				word = word[len(head):]
				wordLen = runewidth.StringWidth(word)
			}
			if wordLen == 0 {
				continue
			}

			if lineLen > 0 {
				line.WriteByte(' ')
				lineLen++
			}
			line.WriteString(word)
			lineLen += wordLen
		}
		if lineLen > 0 {
			lines = append(lines, line.String())
		}
	}
	return lines
}

// MeasureText returns the pixel size of one line of s in face.
func MeasureText(face font.Face, s string) geom.Size {
	return geom.Size{Width: textWidth(face, s), Height: face.Metrics().Height.Ceil()}
}
