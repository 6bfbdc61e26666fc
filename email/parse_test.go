package email

import (
	"errors"
	"strings"
	"testing"
)

func TestParse_Unparseable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "garbage header line", raw: "this is not a header\r\n\r\nbody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			if !errors.Is(err, ErrUnparseable) {
				t.Fatalf("expected ErrUnparseable, got %v", err)
			}
		})
	}
}

func TestParse_MboxEnvelope(t *testing.T) {
	header := "To: support@example.com\r\nSubject: hi\r\n\r\nbody"
	msg := mustParse(t, "From sender@example.org Mon Jan  1 00:00:00 2024\n"+header)

	if got := msg.Values("To"); len(got) != 1 || got[0] != "support@example.com" {
		t.Fatalf("Values(To) = %q", got)
	}
	if msg.Subject() != "hi" {
		t.Fatalf("Subject = %q", msg.Subject())
	}
	if string(msg.Raw) != header {
		t.Fatalf("Raw = %q, want envelope line removed", msg.Raw)
	}
}

func TestParse_EnvelopeOnly(t *testing.T) {
	_, err := Parse([]byte("From sender@example.org Mon Jan  1 00:00:00 2024"))
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	msg, err := Parse([]byte("Subject: no body"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if msg.Subject() != "no body" {
		t.Fatalf("Subject = %q", msg.Subject())
	}
}

func TestParse_RepeatedHeaders(t *testing.T) {
	raw := "To: one@example.com\r\nCc: two@example.com\r\nCc: three@example.com\r\n\r\nbody"
	msg := mustParse(t, raw)

	cc := msg.Values("Cc")
	if len(cc) != 2 || cc[0] != "two@example.com" || cc[1] != "three@example.com" {
		t.Fatalf("Values(Cc) = %q", cc)
	}
	if got := msg.Values("Bcc"); len(got) != 0 {
		t.Fatalf("Values(Bcc) = %q, want none", got)
	}
	if string(msg.Raw) != raw {
		t.Fatal("raw bytes not preserved")
	}
}

func TestParse_Tree(t *testing.T) {
	raw := "From: a@example.com\r\n" + multipart("mixed", "mix",
		"Content-Type: text/plain; charset=UTF-8\r\n\r\nA",
		"Content-Type: application/pdf\r\nContent-Disposition: attachment; filename=x.pdf\r\n\r\n%PDF",
	)
	msg := mustParse(t, raw)

	if !msg.IsContainer() || msg.SubType() != "mixed" {
		t.Fatalf("root = %s, want multipart/mixed container", msg.MediaType)
	}
	if len(msg.Body) != 0 {
		t.Fatal("container must not carry a body")
	}
	if len(msg.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(msg.Children))
	}

	text := msg.Children[0]
	if text.MediaType != "text/plain" || text.Charset() != "utf-8" || string(text.Body) != "A" {
		t.Fatalf("unexpected text part: %s %s %q", text.MediaType, text.Charset(), text.Body)
	}
	if !msg.Children[1].IsAttachment() {
		t.Fatal("second part should be an attachment")
	}
	if len(msg.Defects) != 0 {
		t.Fatalf("unexpected defects: %v", msg.Defects)
	}
}

func TestParse_RecordsDefects(t *testing.T) {
	raw := "Content-Type: text/plain; charset=x-no-such-charset\r\n\r\nbody"
	msg := mustParse(t, raw)
	if len(msg.Defects) == 0 {
		t.Fatal("expected an unknown charset defect")
	}
}

func TestParse_DeepNesting(t *testing.T) {
	raw := "Content-Type: text/plain\r\n\r\ncore"
	for i := 0; i < maxDepth+5; i++ {
		b := "b" + strings.Repeat("x", i)
		raw = multipart("mixed", b, raw)
	}
	msg := mustParse(t, "From: a@example.com\r\n"+raw)
	if len(msg.Defects) == 0 {
		t.Fatal("expected a nesting defect")
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantLocal string
		wantDom   string
		wantName  string
		wantErr   bool
	}{
		{name: "bare", in: "Support@Example.com", wantLocal: "Support", wantDom: "Example.com"},
		{name: "display name", in: "Help Desk <help+7.x@example.org>", wantLocal: "help+7.x", wantDom: "example.org", wantName: "Help Desk"},
		{name: "last at wins", in: "a@b@example.com", wantLocal: "a@b", wantDom: "example.com"},
		{name: "missing at", in: "support", wantErr: true},
		{name: "broken angle", in: "<nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Fatalf("expected ErrInvalidAddress, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q): %v", tt.in, err)
			}
			if got.LocalPart != tt.wantLocal || got.Domain != tt.wantDom || got.Name != tt.wantName {
				t.Errorf("ParseAddress(%q) = %+v", tt.in, got)
			}
		})
	}
}
