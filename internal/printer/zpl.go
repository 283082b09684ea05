package printer

import (
	"fmt"
	"strings"
	"time"
)

const maxTestCopies = 20

// BuildTestLabelZPL renders a small connectivity label.
func BuildTestLabelZPL(message string, copies int, at time.Time) string {
	if copies < 1 {
		copies = 1
	}
	if copies > maxTestCopies {
		copies = maxTestCopies
	}
	if at.IsZero() {
		at = time.Now()
	}

	var b strings.Builder
	b.WriteString("^XA\n")
	b.WriteString("^PW560\n")
	b.WriteString("^LL260\n")
	b.WriteString("^LH0,0\n")
	b.WriteString("^CI28\n")
	b.WriteString("^CF0,36\n")
	b.WriteString(fmt.Sprintf("^FO28,24^FD%s^FS\n", SanitizeZPLText(message, "TEST")))
	b.WriteString("^CF0,24\n")
	b.WriteString(fmt.Sprintf("^FO28,78^FD%s^FS\n", at.Format("2006-01-02 15:04:05")))
	b.WriteString("^CF0,22\n")
	b.WriteString("^FO28,122^FDboxscan network test^FS\n")
	b.WriteString(fmt.Sprintf("^PQ%d,0,1,N\n", copies))
	b.WriteString("^XZ\n")
	return b.String()
}

// SanitizeZPLText strips ZPL command prefixes and line breaks from a field
// value and caps it at 80 runes.
func SanitizeZPLText(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	replacer := strings.NewReplacer(
		"^", " ",
		"~", " ",
		"\n", " ",
		"\r", " ",
	)
	v = replacer.Replace(v)
	if r := []rune(v); len(r) > 80 {
		v = string(r[:80])
	}
	return v
}

// LooksLikeZPL reports whether payload is a complete ^XA..^XZ format.
func LooksLikeZPL(payload string) bool {
	p := strings.TrimSpace(payload)
	return strings.HasPrefix(p, "^XA") && strings.HasSuffix(p, "^XZ")
}
