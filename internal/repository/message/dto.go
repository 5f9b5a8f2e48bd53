package message

import (
	"strings"

	"github.com/kailas-cloud/digestsearch/internal/db"
	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
)

// Hash field names of a stored message.
const (
	fieldMessageID   = "message_id"
	fieldWorkspaceID = "workspace_id"
	fieldChannelID   = "channel_id"
	fieldUserID      = "user_id"
	fieldText        = "text"
	fieldTS          = "ts"
	fieldTopics      = "topics"
	fieldVector      = "vector"
)

// returnFields are the properties fetched for hits. The vector is never
// shipped back.
var returnFields = []string{
	fieldMessageID, fieldWorkspaceID, fieldChannelID, fieldUserID,
	fieldText, fieldTS, fieldTopics,
}

// messageToHash converts a message and its embedding to HSET fields.
// ts is written in its raw wire form; the NUMERIC index parses it.
func messageToHash(msg *dommsg.Message, vector []float32) map[string]string {
	return map[string]string{
		fieldMessageID:   msg.MessageID(),
		fieldWorkspaceID: msg.WorkspaceID(),
		fieldChannelID:   msg.ChannelID(),
		fieldUserID:      msg.UserID(),
		fieldText:        msg.Text(),
		fieldTS:          msg.TS().Raw(),
		fieldTopics:      strings.Join(msg.Topics(), dommsg.TopicSeparator),
		fieldVector:      string(db.EncodeVector(vector)),
	}
}

// messageFromHash hydrates a message from stored fields. An unparseable ts
// hydrates as the zero timestamp rather than dropping the hit.
func messageFromHash(m map[string]string) dommsg.Message {
	ts, err := dommsg.ParseTimestamp(m[fieldTS])
	if err != nil {
		ts = dommsg.Timestamp{}
	}

	var topics []string
	if raw := m[fieldTopics]; raw != "" {
		topics = strings.Split(raw, dommsg.TopicSeparator)
	}

	return dommsg.Reconstruct(
		m[fieldMessageID], m[fieldWorkspaceID], m[fieldChannelID], m[fieldUserID],
		m[fieldText], ts, topics,
	)
}
