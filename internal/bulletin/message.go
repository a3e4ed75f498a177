// Package bulletin provides the message envelope that carries TEMP report text
// between transports, the parser registry and storage.
package bulletin

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FlexInt64 handles JSON fields that can be either string or number.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*f = FlexInt64(i)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			*f = 0
			return nil // Feeds use free-form IDs; those are not worth rejecting the message over.
		}
		*f = FlexInt64(i)
		return nil
	}

	*f = 0
	return nil
}

// Message is one report part as delivered by a feed, a file or the HTTP API.
type Message struct {
	ID        FlexInt64 `json:"id"`
	Source    string    `json:"source"`
	Timestamp string    `json:"timestamp"`
	Station   string    `json:"station,omitempty"` // WMO block and station number, when the feed knows it
	Part      string    `json:"part,omitempty"`    // TTAA, TTBB, ... (detected from Text when empty)
	Text      string    `json:"text"`
}

// Origin describes the feed that produced a wrapped message.
type Origin struct {
	Name        string `json:"name,omitempty"`
	Application string `json:"application,omitempty"`
}

// Wrapper is the bus format where the message is nested inside a "message"
// field with feed metadata at the top level.
type Wrapper struct {
	Source  *Origin  `json:"source,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// ToMessage converts a Wrapper to a Message.
func (w *Wrapper) ToMessage() *Message {
	if w.Message == nil {
		return nil
	}

	msg := *w.Message
	if msg.Source == "" && w.Source != nil {
		msg.Source = w.Source.Name
	}
	return &msg
}

// ParseJSON decodes either a wrapped or a flat message. The part is filled in
// from the text when the sender left it out.
func ParseJSON(data []byte) (*Message, error) {
	var probe struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	var msg *Message
	if len(probe.Message) > 0 && probe.Message[0] == '{' {
		var w Wrapper
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode wrapped message: %w", err)
		}
		msg = w.ToMessage()
	} else {
		msg = &Message{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
	}

	if strings.TrimSpace(msg.Text) == "" {
		return nil, errors.New("decode message: empty text")
	}
	if msg.Part == "" {
		msg.Part = DetectPart(msg.Text)
	}
	msg.Part = strings.ToUpper(msg.Part)
	return msg, nil
}
