package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	htmlcharset "golang.org/x/net/html/charset"
)

// maxDepth bounds container nesting; deeper containers are kept empty.
const maxDepth = 32

func init() {
	gomessage.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		return htmlcharset.NewReaderLabel(label, input)
	}
}

// Parse reads a complete RFC 5322 message into a part tree. Only empty input or
// an unreadable top level header is fatal; everything else is recorded as a
// defect. A leading mbox "From " envelope line is dropped.
func Parse(raw []byte) (*Message, error) {
	raw = stripEnvelope(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnparseable)
	}

	ent, err := gomessage.Read(bytes.NewReader(raw))
	if ent == nil && len(raw) > 0 && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
		// header block without the terminating empty line
		ent, err = gomessage.Read(io.MultiReader(bytes.NewReader(raw), strings.NewReader("\r\n\r\n")))
	}
	if ent == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	msg := &Message{Raw: raw}
	if err != nil {
		if !recoverable(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		msg.Defects = append(msg.Defects, err)
	}

	msg.Part = msg.build(ent, 0)
	return msg, nil
}

// stripEnvelope removes the "From sender date" line that mbox style delivery
// agents put in front of the header.
func stripEnvelope(raw []byte) []byte {
	if !bytes.HasPrefix(raw, []byte("From ")) {
		return raw
	}
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		return raw[idx+1:]
	}
	return nil
}

func recoverable(err error) bool {
	return gomessage.IsUnknownCharset(err) || gomessage.IsUnknownEncoding(err)
}

func (m *Message) build(ent *gomessage.Entity, depth int) *Part {
	mediaType, params, err := ent.Header.ContentType()
	if err != nil || mediaType == "" {
		// RFC 2045 section 5.2 default
		mediaType = "text/plain"
		if params == nil {
			params = map[string]string{}
		}
	}

	p := &Part{
		Header:      ent.Header,
		MediaType:   strings.ToLower(mediaType),
		Params:      params,
		Disposition: ent.Header.Get("Content-Disposition"),
	}

	switch p.MainType() {
	case "multipart":
		if depth >= maxDepth {
			m.Defects = append(m.Defects, fmt.Errorf("multipart nested deeper than %d", maxDepth))
			return p
		}
		m.children(p, ent, depth)
		return p
	case "message":
		if p.SubType() == "rfc822" || p.SubType() == "global" {
			if nested := m.embedded(ent, depth); nested != nil {
				p.Children = []*Part{nested}
				return p
			}
			return p
		}
	}

	body, err := io.ReadAll(ent.Body)
	if err != nil {
		m.Defects = append(m.Defects, fmt.Errorf("read %s body: %w", p.MediaType, err))
	}
	p.Body = body
	return p
}

func (m *Message) children(p *Part, ent *gomessage.Entity, depth int) {
	mr := ent.MultipartReader()
	if mr == nil {
		return
	}
	for {
		child, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if child == nil || !recoverable(err) {
				m.Defects = append(m.Defects, fmt.Errorf("read %s part: %w", p.MediaType, err))
				return
			}
			m.Defects = append(m.Defects, err)
		}
		p.Children = append(p.Children, m.build(child, depth+1))
	}
}

func (m *Message) embedded(ent *gomessage.Entity, depth int) *Part {
	if depth >= maxDepth {
		m.Defects = append(m.Defects, fmt.Errorf("message nested deeper than %d", maxDepth))
		return nil
	}
	nested, err := gomessage.Read(ent.Body)
	if nested == nil {
		m.Defects = append(m.Defects, fmt.Errorf("read embedded message: %w", err))
		return nil
	}
	if err != nil {
		m.Defects = append(m.Defects, err)
	}
	return m.build(nested, depth+1)
}
