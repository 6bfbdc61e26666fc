package handler

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/roadrunner-plugins/inbound/email"
	"github.com/roadrunner-plugins/inbound/recipient"
)

// Event types sent to workers
const (
	EventMessageReceived string = "MESSAGE_RECEIVED" // inbound message parsed and resolved
)

// MessageEvent is the root structure sent to the worker in payload.Context (JSON)
type MessageEvent struct {
	// Event type
	Event string `json:"event"`

	// Dispatch identifier, shared with log lines
	UUID string `json:"uuid"`

	// Time the worker handler saw the message
	ReceivedAt time.Time `json:"received_at"`

	// Namespace the ids were verified under
	Namespace string `json:"namespace"`

	// Verified record ids, ascending
	IDs []int64 `json:"ids"`

	// Recipients matching the base address, with or without extension
	Recipients []string `json:"recipients"`

	// Parsed message
	Message Message `json:"message"`

	// Attachments found anywhere in the part tree
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Message contains the parsed message content
type Message struct {
	// Headers keyed by canonical name, repeated fields joined with ", "
	Headers map[string]string `json:"headers"`

	Subject string `json:"subject"`

	// Best body text
	Body string `json:"body"`

	// Plain is false when Body is an HTML fallback
	Plain bool `json:"plain"`

	// Full raw message (optional, if include_raw is set)
	Raw string `json:"raw,omitempty"`
}

// Attachment represents a single attachment
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`

	// Base64 encoded content
	Content string `json:"content,omitempty"`
}

// newMessageEvent fills ev from msg.
func newMessageEvent(ev *MessageEvent, msg *email.Message, namespace string, ids []int64, matches []recipient.Match, includeRaw bool) {
	ev.Event = EventMessageReceived
	ev.UUID = msg.UUID
	ev.ReceivedAt = time.Now()
	ev.Namespace = namespace
	ev.IDs = ids

	ev.Recipients = ev.Recipients[:0]
	for _, m := range matches {
		ev.Recipients = append(ev.Recipients, m.Recipient.Spec())
	}

	ev.Message.Headers = headers(msg)
	ev.Message.Subject = msg.Subject()
	plain, fragments := email.BestText(msg.Part)
	ev.Message.Body = strings.Join(fragments, "")
	ev.Message.Plain = plain
	if includeRaw {
		ev.Message.Raw = string(msg.Raw)
	}

	ev.Attachments = attachments(ev.Attachments[:0], msg.Part)
}

func headers(msg *email.Message) map[string]string {
	out := make(map[string]string, msg.Header.Len())
	fields := msg.Header.Fields()
	for fields.Next() {
		key := fields.Key()
		if prev, ok := out[key]; ok {
			out[key] = prev + ", " + fields.Value()
			continue
		}
		out[key] = fields.Value()
	}
	return out
}

func attachments(dst []Attachment, part *email.Part) []Attachment {
	if part.IsAttachment() && !part.IsContainer() {
		_, params, _ := part.Header.ContentDisposition()
		filename := params["filename"]
		if filename == "" {
			filename = part.Params["name"]
		}
		return append(dst, Attachment{
			Filename:    filename,
			ContentType: part.MediaType,
			Size:        int64(len(part.Body)),
			Content:     base64.StdEncoding.EncodeToString(part.Body),
		})
	}
	for _, child := range part.Children {
		dst = attachments(dst, child)
	}
	return dst
}
