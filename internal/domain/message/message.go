// Package message holds the chat message aggregate stored in the vector index.
package message

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxTextSize is the maximum message text size in bytes.
const MaxTextSize = 40000

// idNamespace is the RFC 4122 URL namespace. Changing it re-keys every
// stored message.
var idNamespace = uuid.NameSpaceURL

// DeriveID returns the stable object id of the message posted at rawTS in
// channelID: UUIDv5 over "{channel_id}:{raw_ts}". rawTS must be the timestamp
// exactly as received, never a re-formatted float.
func DeriveID(channelID, rawTS string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte(channelID+":"+rawTS))
}

// Timestamp is a Unix timestamp in seconds that remembers its wire form.
type Timestamp struct {
	raw     string
	seconds float64
}

// ParseTimestamp parses a seconds-since-epoch string such as "1711000000.001".
// Only plain decimal forms are accepted; the text is kept verbatim for
// DeriveID, so surrounding whitespace is an error rather than trimmed.
func ParseTimestamp(raw string) (Timestamp, error) {
	if raw == "" {
		return Timestamp{}, fmt.Errorf("ts is required")
	}
	if !isDecimal(raw) {
		return Timestamp{}, fmt.Errorf("ts %q is not a decimal number", raw)
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(secs, 0) || math.IsNaN(secs) {
		return Timestamp{}, fmt.Errorf("ts %q is not a finite number", raw)
	}
	return Timestamp{raw: raw, seconds: secs}, nil
}

// isDecimal reports whether s is an unsigned JSON number: digits with an
// optional fraction and exponent. NaN, Inf, hex floats and signs are not.
func isDecimal(s string) bool {
	i, n := 0, len(s)
	digits := func() int {
		start := i
		for i < n && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		return i - start
	}
	if digits() == 0 {
		return false
	}
	if i < n && s[i] == '.' {
		i++
		if digits() == 0 {
			return false
		}
	}
	if i < n && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < n && (s[i] == '+' || s[i] == '-') {
			i++
		}
		if digits() == 0 {
			return false
		}
	}
	return i == n
}

// Raw returns the timestamp as received.
func (t Timestamp) Raw() string { return t.raw }

// Seconds returns the parsed timestamp.
func (t Timestamp) Seconds() float64 { return t.seconds }

// IsZero reports whether the timestamp is unset.
func (t Timestamp) IsZero() bool { return t.raw == "" }

// Message is an immutable chat message.
type Message struct {
	messageID   string
	workspaceID string
	channelID   string
	userID      string
	text        string
	ts          Timestamp
	topics      []string
}

// New validates and creates a Message. message_id, workspace_id, channel_id,
// ts and text are required.
func New(messageID, workspaceID, channelID, userID, text string, ts Timestamp, topics []string) (Message, error) {
	switch {
	case messageID == "":
		return Message{}, fmt.Errorf("message_id is required")
	case workspaceID == "":
		return Message{}, fmt.Errorf("workspace_id is required")
	case channelID == "":
		return Message{}, fmt.Errorf("channel_id is required")
	case ts.IsZero():
		return Message{}, fmt.Errorf("ts is required")
	case strings.TrimSpace(text) == "":
		return Message{}, fmt.Errorf("text is required")
	case len(text) > MaxTextSize:
		return Message{}, fmt.Errorf("text too large (max %d bytes)", MaxTextSize)
	}
	for _, f := range [...]struct{ name, value string }{
		{"message_id", messageID},
		{"workspace_id", workspaceID},
		{"channel_id", channelID},
		{"user_id", userID},
	} {
		if strings.Contains(f.value, IDTagSeparator) {
			return Message{}, fmt.Errorf("%s %q must not contain %q", f.name, f.value, IDTagSeparator)
		}
	}
	for i, t := range topics {
		if strings.TrimSpace(t) == "" {
			return Message{}, fmt.Errorf("topic %d is empty", i)
		}
		if strings.Contains(t, TopicSeparator) {
			return Message{}, fmt.Errorf("topic %q must not contain %q", t, TopicSeparator)
		}
	}

	return Reconstruct(messageID, workspaceID, channelID, userID, text, ts, topics), nil
}

// Reconstruct creates a Message without validation (storage hydration).
func Reconstruct(messageID, workspaceID, channelID, userID, text string, ts Timestamp, topics []string) Message {
	return Message{
		messageID:   messageID,
		workspaceID: workspaceID,
		channelID:   channelID,
		userID:      userID,
		text:        text,
		ts:          ts,
		topics:      append([]string(nil), topics...),
	}
}

// TopicSeparator joins topics in the stored TAG field.
const TopicSeparator = "|"

// IDTagSeparator splits the identifier TAG fields. Identifiers containing it
// would be indexed as several tags, so New rejects them.
const IDTagSeparator = ","

// ID returns the derived object id.
func (m *Message) ID() uuid.UUID { return DeriveID(m.channelID, m.ts.Raw()) }

// MessageID returns the upstream message identifier.
func (m *Message) MessageID() string { return m.messageID }

// WorkspaceID returns the workspace scope.
func (m *Message) WorkspaceID() string { return m.workspaceID }

// ChannelID returns the channel the message was posted in.
func (m *Message) ChannelID() string { return m.channelID }

// UserID returns the author.
func (m *Message) UserID() string { return m.userID }

// Text returns the message body.
func (m *Message) Text() string { return m.text }

// TS returns the post time.
func (m *Message) TS() Timestamp { return m.ts }

// Topics returns a copy of the topic labels.
func (m *Message) Topics() []string { return append([]string(nil), m.topics...) }
