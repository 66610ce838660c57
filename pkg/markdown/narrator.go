// Package markdown formats narrator content and round-trips the structured
// Rules format used by the rules cache (spec §4.2, §4.3, §6).
package markdown

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
)

// choiceToken matches a `[[n]]` section-link token that narrator formatting
// must preserve verbatim (spec §4.2, "preserve choice tokens").
var choiceToken = regexp.MustCompile(`\[\[\d+\]\]`)

// FormatNarrative converts raw section markdown into HTML-equivalent markup
// (headings, emphasis) while leaving choice tokens untouched. It tries
// goldmark first and falls back to a deterministic manual conversion on
// failure, per spec §4.2 step 3.
func FormatNarrative(raw string) (formatted string, usedFallback bool) {
	placeholders, protectedRaw := protectChoiceTokens(raw)

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(protectedRaw), &buf); err == nil {
		return restoreChoiceTokens(buf.String(), placeholders), false
	}

	return restoreChoiceTokens(manualFormat(protectedRaw), placeholders), true
}

// protectChoiceTokens swaps every [[n]] token for an inert placeholder so
// an HTML renderer never mangles the brackets, and returns the
// placeholder-to-token map restoreChoiceTokens uses to put them back,
// along with the protected text. Placeholders are delimited by a
// private-use character, which the renderer passes through unchanged.
func protectChoiceTokens(raw string) (map[string]string, string) {
	placeholders := make(map[string]string)
	i := 0
	protected := choiceToken.ReplaceAllStringFunc(raw, func(tok string) string {
		key := "CHOICE" + strconv.Itoa(i) + ""
		placeholders[key] = tok
		i++
		return key
	})
	return placeholders, protected
}

func restoreChoiceTokens(s string, placeholders map[string]string) string {
	for key, tok := range placeholders {
		s = strings.ReplaceAll(s, key, tok)
	}
	return s
}

// manualFormat is the deterministic fallback conversion used when the
// external formatter fails: it recognizes ATX headings (`#`..`######`) and
// simple `**bold**`/`*italic*` emphasis line by line, with no other
// markdown extensions.
func manualFormat(raw string) string {
	lines := strings.Split(raw, "\n")
	var out strings.Builder
	for i, line := range lines {
		out.WriteString(formatHeading(line))
		if i < len(lines)-1 {
			out.WriteByte('\n')
		}
	}
	return formatEmphasis(out.String())
}

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

func formatHeading(line string) string {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	level := strconv.Itoa(len(m[1]))
	return "<h" + level + ">" + m[2] + "</h" + level + ">"
}

var (
	boldRe   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*]+)\*`)
)

func formatEmphasis(s string) string {
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRe.ReplaceAllString(s, "<em>$1</em>")
	return s
}
