// Package recipient finds the addresses a message was delivered to and matches
// them against a base address, splitting out the "+extension".
package recipient

import (
	"strings"

	gomail "github.com/emersion/go-message/mail"

	"github.com/roadrunner-plugins/inbound/email"
)

// HeaderNames lists, in scan order, the header fields that can carry a
// recipient: direct, resent, and the envelope variants added by relays.
var HeaderNames = []string{
	"To",
	"Cc",
	"Bcc",
	"Resent-To",
	"Resent-Cc",
	"Resent-Bcc",
	"Delivered-To",
	"X-Original-To",
	"Envelope-To",
	"X-Envelope-To",
	"Apparently-To",
}

// Match is the result of testing one recipient against one base address.
type Match struct {
	Recipient email.Address

	// Extension is everything after the first "+" of the local part.
	Extension string

	// HasExtension is false when the local part carried no "+" at all.
	HasExtension bool
}

// Extract returns every recipient of msg in header then occurrence order.
// When an occurrence does not parse as an address list, each of its entries is
// parsed on its own and the unparseable ones are skipped.
func Extract(msg *email.Message) []email.Address {
	var out []email.Address
	for _, name := range HeaderNames {
		for _, value := range msg.Values(name) {
			list, err := gomail.ParseAddressList(value)
			if err != nil {
				list = parseEach(value)
			}
			for _, a := range list {
				addr, err := email.SplitAddress(a.Address)
				if err != nil {
					continue
				}
				addr.Name = a.Name
				out = append(out, addr)
			}
		}
	}
	return out
}

func parseEach(value string) []*gomail.Address {
	var list []*gomail.Address
	for _, entry := range splitList(value) {
		a, err := gomail.ParseAddress(entry)
		if err != nil {
			continue
		}
		list = append(list, a)
	}
	return list
}

// splitList splits an address list on the commas that are outside quoted
// strings, angle brackets and comments. Group names ("team: a@b, c@d;") are
// dropped so that group members parse as plain addresses.
func splitList(value string) []string {
	var (
		entries []string
		start   int
		quoted  bool
		escaped bool
		angle   int
		comment int
	)

	add := func(entry string) {
		entry = strings.TrimSpace(entry)
		entry = strings.TrimSpace(strings.TrimSuffix(entry, ";"))
		if entry != "" {
			entries = append(entries, entry)
		}
	}

	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && (quoted || comment > 0):
			escaped = true
		case c == '"' && comment == 0:
			quoted = !quoted
		case quoted:
		case c == '(':
			comment++
		case c == ')' && comment > 0:
			comment--
		case comment > 0:
		case c == '<':
			angle++
		case c == '>' && angle > 0:
			angle--
		case angle > 0:
		case c == ':':
			start = i + 1
		case c == ',' || c == ';':
			add(value[start:i])
			start = i + 1
		}
	}
	add(value[start:])
	return entries
}

// MatchOne tests r against base: domains must be equal and the local part up to
// its first "+" must equal base's local part, both ignoring case.
func MatchOne(r, base email.Address) (Match, bool) {
	if !strings.EqualFold(r.Domain, base.Domain) {
		return Match{}, false
	}
	local, ext, found := strings.Cut(r.LocalPart, "+")
	if !strings.EqualFold(local, base.LocalPart) {
		return Match{}, false
	}
	return Match{Recipient: r, Extension: ext, HasExtension: found}, true
}

// MatchAll applies MatchOne to every recipient of msg, keeping order.
func MatchAll(msg *email.Message, base email.Address) []Match {
	var matches []Match
	for _, r := range Extract(msg) {
		if m, ok := MatchOne(r, base); ok {
			matches = append(matches, m)
		}
	}
	return matches
}
