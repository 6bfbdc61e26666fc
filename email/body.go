package email

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// BestText returns the best human readable rendering of part. plain is false
// when the fragments are an HTML fallback (or when nothing was found in a
// non-text part).
func BestText(part *Part) (plain bool, fragments []string) {
	if part == nil || part.IsAttachment() {
		return false, nil
	}

	switch {
	case part.MainType() == "text" && !part.IsContainer():
		return leafText(part)
	case part.IsContainer() && part.SubType() == "alternative":
		return alternative(part.Children)
	case part.IsContainer():
		return aggregate(part.Children)
	}
	return false, nil
}

// Plaintext joins the fragments chosen by BestText. The result may be HTML when
// the message carries no plain text part; ok is false when nothing was found.
func Plaintext(msg *Message) (text string, ok bool) {
	if msg == nil {
		return "", false
	}
	_, fragments := BestText(msg.Part)
	text = strings.Join(fragments, "")
	return text, text != ""
}

func leafText(part *Part) (bool, []string) {
	text := trimNewline(decodeLossy(part.Body))
	if text == "" {
		return true, nil
	}
	switch part.SubType() {
	case "plain":
		return true, []string{text}
	case "html":
		return false, []string{text}
	}
	return true, nil
}

func alternative(children []*Part) (bool, []string) {
	var plain, html []string
	for _, child := range children {
		isPlain, fragments := BestText(child)
		if isPlain {
			plain = append(plain, fragments...)
		} else {
			html = append(html, fragments...)
		}
	}
	if len(plain) > 0 {
		return true, []string{longest(plain)}
	}
	if len(html) > 0 {
		return false, []string{longest(html)}
	}
	return false, nil
}

func aggregate(children []*Part) (bool, []string) {
	plain := true
	var all []string
	for _, child := range children {
		isPlain, fragments := BestText(child)
		if !isPlain && len(fragments) > 0 {
			plain = false
		}
		all = append(all, fragments...)
	}
	return plain, all
}

// longest returns the candidate with the most characters; the first wins ties.
func longest(candidates []string) string {
	best, bestLen := "", -1
	for _, c := range candidates {
		if n := utf8.RuneCountInString(c); n > bestLen {
			best, bestLen = c, n
		}
	}
	return best
}

func trimNewline(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	return strings.TrimSuffix(s, "\n")
}

// decodeLossy interprets b as UTF-8. Each maximal invalid subsequence becomes a
// single U+FFFD.
func decodeLossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	decoded, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(decoded)
}
