package export

// ExportedMessage is a single message in the archive's JSON format.
// Messages with empty text are never materialized.
type ExportedMessage struct {
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	IsFromMe  bool   `json:"is_from_me"`
	Text      string `json:"text"`
}

// ExportedChatMeta describes one exported conversation.
type ExportedChatMeta struct {
	Name         string `json:"name"`
	Identifier   string `json:"identifier"`
	Service      string `json:"service"`
	MessageCount int    `json:"message_count"`
}

// ExportedChat is the complete per-chat payload written to chat_NNN.json.
type ExportedChat struct {
	Meta     ExportedChatMeta  `json:"meta"`
	Messages []ExportedMessage `json:"messages"`
}

// manifest is the archive-level metadata written to manifest.json.
type manifest struct {
	Version       string `json:"version"`
	Source        string `json:"source"`
	ExportDate    string `json:"export_date"`
	ChatCount     int    `json:"chat_count"`
	TotalMessages int    `json:"total_messages"`
}

const (
	manifestVersion = "1.0"
	manifestSource  = "imessage"
)
