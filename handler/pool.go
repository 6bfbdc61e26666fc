package handler

import (
	"sync"

	"github.com/roadrunner-server/pool/payload"
)

// poolHelper reuses events and payloads across worker dispatches
type poolHelper struct {
	events   sync.Pool
	payloads sync.Pool
}

func newPoolHelper() *poolHelper {
	return &poolHelper{
		events: sync.Pool{
			New: func() any {
				return &MessageEvent{
					Recipients: make([]string, 0, 4),
				}
			},
		},
		payloads: sync.Pool{
			New: func() any {
				return &payload.Payload{}
			},
		},
	}
}

func (ph *poolHelper) getEvent() *MessageEvent {
	return ph.events.Get().(*MessageEvent)
}

// putEvent returns ev after resetting fields that hold message data
func (ph *poolHelper) putEvent(ev *MessageEvent) {
	ev.Event = ""
	ev.UUID = ""
	ev.Namespace = ""
	ev.IDs = nil
	ev.Recipients = ev.Recipients[:0]
	ev.Message = Message{}
	ev.Attachments = ev.Attachments[:0]
	ph.events.Put(ev)
}

func (ph *poolHelper) getPayload() *payload.Payload {
	return ph.payloads.Get().(*payload.Payload)
}

func (ph *poolHelper) putPayload(pld *payload.Payload) {
	pld.Body = nil
	pld.Context = nil
	ph.payloads.Put(pld)
}
