// Package email holds the parsed representation of an inbound message: a tree
// of MIME parts plus the addresses found in its headers.
package email

import (
	"errors"
	"fmt"
	"strings"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
)

var (
	// ErrUnparseable indicates the raw bytes do not form a readable message.
	ErrUnparseable = errors.New("message unparseable")

	// ErrInvalidAddress indicates an address without the required "@".
	ErrInvalidAddress = errors.New("invalid address")
)

// Address is a single mailbox. LocalPart and Domain keep their original case;
// comparisons fold case.
type Address struct {
	Name      string
	LocalPart string
	Domain    string
}

// ParseAddress parses "local@domain" or "Name <local@domain>".
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "<>") {
		parsed, err := gomail.ParseAddress(s)
		if err != nil {
			return Address{}, ErrInvalidAddress
		}
		addr, err := SplitAddress(parsed.Address)
		if err != nil {
			return Address{}, err
		}
		addr.Name = parsed.Name
		return addr, nil
	}
	return SplitAddress(s)
}

// SplitAddress splits a bare addr-spec on its last "@".
func SplitAddress(spec string) (Address, error) {
	idx := strings.LastIndex(spec, "@")
	if idx < 0 {
		return Address{}, ErrInvalidAddress
	}
	return Address{LocalPart: spec[:idx], Domain: spec[idx+1:]}, nil
}

// Spec returns the bare "local@domain" form.
func (a Address) Spec() string {
	return a.LocalPart + "@" + a.Domain
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Spec()
	}
	return fmt.Sprintf("%q <%s>", a.Name, a.Spec())
}

// Part is a node of the MIME tree. A leaf carries Body, a container carries
// Children; never both.
type Part struct {
	Header gomessage.Header

	// MediaType is the lower cased "maintype/subtype".
	MediaType string
	Params    map[string]string

	// Disposition is the raw Content-Disposition value, if any.
	Disposition string

	// Body is the transfer-decoded payload of a leaf. Text parts with a known
	// charset are already transcoded to UTF-8.
	Body []byte

	Children []*Part
}

// MainType returns the part's top level media type ("text", "multipart", ...).
func (p *Part) MainType() string {
	main, _, _ := strings.Cut(p.MediaType, "/")
	return main
}

// SubType returns the part's media subtype ("plain", "alternative", ...).
func (p *Part) SubType() string {
	_, sub, _ := strings.Cut(p.MediaType, "/")
	return sub
}

// Charset returns the declared charset, lower cased.
func (p *Part) Charset() string {
	return strings.ToLower(strings.TrimSpace(p.Params["charset"]))
}

// IsContainer reports whether the part holds child parts rather than a payload.
func (p *Part) IsContainer() bool {
	switch p.MainType() {
	case "multipart":
		return true
	case "message":
		return len(p.Children) > 0
	}
	return false
}

// IsAttachment reports whether Content-Disposition marks the part as an attachment.
func (p *Part) IsAttachment() bool {
	return strings.Contains(strings.ToLower(p.Disposition), "attachment")
}

// Message is a parsed inbound message.
type Message struct {
	*Part

	// UUID identifies the dispatch this message belongs to; set by the pipeline.
	UUID string

	// Raw is the message exactly as received.
	Raw []byte

	// Defects lists problems that did not prevent parsing.
	Defects []error
}

// Values returns every occurrence of the named top level header, in order.
func (m *Message) Values(name string) []string {
	var values []string
	fields := m.Header.FieldsByKey(name)
	for fields.Next() {
		values = append(values, fields.Value())
	}
	return values
}

// Subject returns the decoded Subject header.
func (m *Message) Subject() string {
	h := gomail.Header{Header: m.Header}
	subject, err := h.Subject()
	if err != nil {
		return m.Header.Get("Subject")
	}
	return subject
}

// String summarises the message for log lines.
func (m *Message) String() string {
	return fmt.Sprintf("Message-Id=%s From=%q To=%q Subject=%q",
		m.Header.Get("Message-Id"),
		m.Header.Get("From"),
		m.Header.Get("To"),
		m.Subject(),
	)
}
