package addressing

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roadrunner-plugins/inbound/email"
)

func resolveRaw(t *testing.T, r *Resolver, ns, raw string) []int64 {
	t.Helper()
	msg, err := email.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	b, err := email.SplitAddress(base)
	if err != nil {
		t.Fatal(err)
	}
	return r.Resolve(msg, ns, b)
}

func TestResolver_MultipleRecipients(t *testing.T) {
	s := newSigner(t, Keys{Current: "secret"})
	a42, _ := s.Encode("ticket", base, 42)
	a7, _ := s.Encode("ticket", base, 7)

	raw := "From: someone@example.org\r\n" +
		"To: " + a42 + ", unrelated@example.org\r\n" +
		"Cc: \"Support\" <" + a7 + ">\r\n" +
		"Bcc: " + strings.ToUpper(a42) + "\r\n" +
		"Subject: re\r\n\r\nhello"

	got := resolveRaw(t, NewResolver(s, nil), "ticket", raw)
	if len(got) != 2 || got[0] != 7 || got[1] != 42 {
		t.Fatalf("Resolve = %v, want [7 42]", got)
	}
}

func TestResolver_MalformedSibling(t *testing.T) {
	s := newSigner(t, Keys{Current: "secret"})
	a7, _ := s.Encode("ticket", base, 7)

	for _, to := range []string{a7 + ", undisclosed", "<>, <" + a7 + ">"} {
		raw := "To: " + to + "\r\n\r\nhello"
		got := resolveRaw(t, NewResolver(s, nil), "ticket", raw)
		if len(got) != 1 || got[0] != 7 {
			t.Errorf("Resolve(To: %s) = %v, want [7]", to, got)
		}
	}
}

func TestResolver_NoMatches(t *testing.T) {
	s := newSigner(t, Keys{Current: "secret"})
	raw := "To: someone@example.org\r\n\r\nhello"

	got := resolveRaw(t, NewResolver(s, nil), "ticket", raw)
	if got == nil || len(got) != 0 {
		t.Fatalf("Resolve = %#v, want empty slice", got)
	}
}

func TestResolver_WrongNamespace(t *testing.T) {
	s := newSigner(t, Keys{Current: "secret"})
	addr, _ := s.Encode("ticket", base, 5)
	raw := "To: " + addr + "\r\n\r\nhello"

	if got := resolveRaw(t, NewResolver(s, nil), "forge", raw); len(got) != 0 {
		t.Fatalf("Resolve = %v, want none", got)
	}
}

func TestResolver_LogsRejectedRecipients(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := newSigner(t, Keys{Current: "secret"})
	good, _ := s.Encode("ticket", base, 1)

	raw := "To: " + base + "\r\n" +
		"Cc: support+1.forged@example.com, " + good + "\r\n" +
		"\r\nhello"

	got := resolveRaw(t, NewResolver(s, zap.New(core)), "ticket", raw)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("Resolve = %v, want [1]", got)
	}

	if n := logs.FilterMessage("recipient cannot be matched to a record").Len(); n != 1 {
		t.Errorf("unmatched log entries = %d, want 1", n)
	}
	failed := logs.FilterMessage("recipient failed validation").All()
	if len(failed) != 1 {
		t.Fatalf("validation log entries = %d, want 1", len(failed))
	}
	if failed[0].Level != zapcore.DebugLevel {
		t.Errorf("validation log level = %s, want debug", failed[0].Level)
	}
	if rcpt := failed[0].ContextMap()["recipient"]; rcpt != "support+1.forged@example.com" {
		t.Errorf("logged recipient = %v", rcpt)
	}
}
