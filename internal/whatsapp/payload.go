package whatsapp

import (
	"strconv"
	"time"
)

// Webhook payload as delivered by the Meta Cloud API. Only the fields this
// system reads are declared.

type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Context *struct {
		ID string `json:"id"`
	} `json:"context,omitempty"`
}

// Inbound is one flattened message ready for processing: the unit of work
// handed to the worker pool.
type Inbound struct {
	WAMID        string
	From         string
	ContactName  string
	Type         string
	Body         string // empty for non-text types
	ReplyToWAMID string
	Timestamp    time.Time
}

// Flatten walks the entry/changes nesting and returns every message of a
// whatsapp_business_account payload, paired with the contact display name.
// Anything else yields an empty slice.
func (p *Payload) Flatten() []Inbound {
	if p.Object != "whatsapp_business_account" {
		return nil
	}
	var out []Inbound
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			name := ""
			if len(change.Value.Contacts) > 0 {
				name = change.Value.Contacts[0].Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if msg.ID == "" || msg.From == "" {
					continue
				}
				in := Inbound{
					WAMID:       msg.ID,
					From:        msg.From,
					ContactName: name,
					Type:        msg.Type,
					Timestamp:   parseUnix(msg.Timestamp),
				}
				if msg.Text != nil {
					in.Body = msg.Text.Body
				}
				if msg.Context != nil {
					in.ReplyToWAMID = msg.Context.ID
				}
				out = append(out, in)
			}
		}
	}
	return out
}

func parseUnix(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Now()
	}
	return time.Unix(sec, 0)
}
