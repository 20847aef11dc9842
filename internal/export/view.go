package export

import (
	"sort"

	"go.uber.org/zap"

	"github.com/DocSpring/chattomap/internal/chatdb"
	"github.com/DocSpring/chattomap/internal/contacts"
)

// ChatView is the derived listing row for one chat. It is recomputed on
// every listing call and never persisted.
type ChatView struct {
	ID               int    `json:"id"`
	DisplayName      string `json:"display_name"`
	Identifier       string `json:"chat_identifier"`
	Service          string `json:"service"`
	ParticipantCount int    `json:"participant_count"`
	MessageCount     int    `json:"message_count"`
	LastMessageDate  int64  `json:"last_message_date"`
}

// ResolveChatDisplayName picks a human label for a chat: the stored display
// name when present, the resolved participant name for 1:1 chats, and the
// raw chat identifier otherwise. Group chats with no stored name always fall
// through to the identifier; no name composition is attempted.
func ResolveChatDisplayName(chat chatdb.Chat, members []int, participants map[int]contacts.Name, canonical map[int]int) string {
	if chat.DisplayName != "" {
		return chat.DisplayName
	}

	if len(members) == 1 {
		if canonicalID, ok := canonical[members[0]]; ok {
			if name, ok := participants[canonicalID]; ok {
				if display := name.DisplayName(); display != "" {
					return display
				}
			}
		}
	}

	return chat.Identifier
}

// ListChats builds the listing view for every chat in the store, sorted by
// most recent message first.
func ListChats(db *chatdb.DB, idx *contacts.Index, logger *zap.Logger) ([]ChatView, error) {
	chats, err := db.CacheChats()
	if err != nil {
		return nil, err
	}
	handles, err := db.CacheHandles()
	if err != nil {
		return nil, err
	}
	canonical := chatdb.DedupeHandles(handles)
	participants := idx.BuildParticipantsMap(chatdb.HandleIdentifiers(handles), canonical)

	members, err := db.CacheChatParticipants()
	if err != nil {
		return nil, err
	}
	stats, err := db.ChatStats()
	if err != nil {
		return nil, err
	}

	logger.Debug("listing chats",
		zap.Int("chats", len(chats)),
		zap.Int("handles", len(handles)),
		zap.Int("participants", len(participants)))

	views := make([]ChatView, 0, len(chats))
	for id, chat := range chats {
		stat := stats[id]
		views = append(views, ChatView{
			ID:               id,
			DisplayName:      ResolveChatDisplayName(chat, members[id], participants, canonical),
			Identifier:       chat.Identifier,
			Service:          serviceOrUnknown(chat.ServiceName),
			ParticipantCount: len(members[id]),
			MessageCount:     stat.MessageCount,
			LastMessageDate:  stat.LastMessageDate,
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].LastMessageDate > views[j].LastMessageDate
	})
	return views, nil
}

func serviceOrUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
