package chatdb

import (
	"fmt"
	"sort"
	"strings"
)

// Chat is one row of the chat table.
type Chat struct {
	ID          int
	GUID        string
	Identifier  string
	DisplayName string
	ServiceName string
	Style       int
}

// Handle is one row of the handle table.
type Handle struct {
	ID              int
	Identifier      string
	PersonCentricID string
}

// ChatStat is the per-chat aggregate over the message join.
type ChatStat struct {
	MessageCount    int
	LastMessageDate int64
}

// CacheChats loads every chat keyed by ROWID.
func (db *DB) CacheChats() (map[int]Chat, error) {
	rows, err := db.Query(`
		SELECT ROWID, guid, chat_identifier, COALESCE(display_name, ''), COALESCE(service_name, ''), COALESCE(style, 0)
		FROM chat`)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chats := make(map[int]Chat)
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.GUID, &c.Identifier, &c.DisplayName, &c.ServiceName, &c.Style); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats[c.ID] = c
	}
	return chats, rows.Err()
}

// CacheHandles loads every handle keyed by ROWID.
func (db *DB) CacheHandles() (map[int]Handle, error) {
	rows, err := db.Query(`
		SELECT ROWID, id, COALESCE(person_centric_id, '')
		FROM handle`)
	if err != nil {
		return nil, fmt.Errorf("query handles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	handles := make(map[int]Handle)
	for rows.Next() {
		var h Handle
		if err := rows.Scan(&h.ID, &h.Identifier, &h.PersonCentricID); err != nil {
			return nil, fmt.Errorf("scan handle: %w", err)
		}
		handles[h.ID] = h
	}
	return handles, rows.Err()
}

// HandleIdentifiers flattens a handle cache to handle_id -> raw identifier.
func HandleIdentifiers(handles map[int]Handle) map[int]string {
	out := make(map[int]string, len(handles))
	for id, h := range handles {
		out[id] = h.Identifier
	}
	return out
}

// DedupeHandles builds the handle_id -> canonical_id map. Handles sharing a
// person_centric_id, or failing that the same digit-normalized identifier,
// collapse to one canonical id. Handle ids are walked in ascending order and
// the first handle of each group lends its id as the canonical one, so the
// mapping is deterministic and identity-shaped when there are no duplicates.
func DedupeHandles(handles map[int]Handle) map[int]int {
	ids := make([]int, 0, len(handles))
	for id := range handles {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	canonical := make(map[int]int, len(handles))
	byGroup := make(map[string]int)
	for _, id := range ids {
		key := groupKey(handles[id])
		if first, ok := byGroup[key]; ok {
			canonical[id] = first
			continue
		}
		byGroup[key] = id
		canonical[id] = id
	}
	return canonical
}

func groupKey(h Handle) string {
	if h.PersonCentricID != "" {
		return "pcid:" + h.PersonCentricID
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, h.Identifier)
	if digits != "" {
		return "tel:" + strings.TrimPrefix(digits, "1")
	}
	return "id:" + strings.ToLower(strings.TrimSpace(h.Identifier))
}

// CacheChatParticipants loads chat_id -> member handle ids, sorted ascending.
func (db *DB) CacheChatParticipants() (map[int][]int, error) {
	rows, err := db.Query(`SELECT chat_id, handle_id FROM chat_handle_join`)
	if err != nil {
		return nil, fmt.Errorf("query chat participants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	participants := make(map[int][]int)
	for rows.Next() {
		var chatID, handleID int
		if err := rows.Scan(&chatID, &handleID); err != nil {
			return nil, fmt.Errorf("scan chat participant: %w", err)
		}
		participants[chatID] = append(participants[chatID], handleID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, ids := range participants {
		sort.Ints(ids)
	}
	return participants, nil
}

// ChatStats aggregates message count and most recent message date per chat.
func (db *DB) ChatStats() (map[int]ChatStat, error) {
	rows, err := db.Query(`
		SELECT cmj.chat_id, COUNT(*), COALESCE(MAX(m.date), 0)
		FROM chat_message_join cmj
		JOIN message m ON cmj.message_id = m.ROWID
		GROUP BY cmj.chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query chat stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[int]ChatStat)
	for rows.Next() {
		var chatID int
		var s ChatStat
		if err := rows.Scan(&chatID, &s.MessageCount, &s.LastMessageDate); err != nil {
			return nil, fmt.Errorf("scan chat stat: %w", err)
		}
		stats[chatID] = s
	}
	return stats, rows.Err()
}

// CountMessages returns how many messages belong to the selected chats.
func (db *DB) CountMessages(chatIDs []int) (int, error) {
	if len(chatIDs) == 0 {
		return 0, nil
	}
	query, args := inClause(`
		SELECT COUNT(*)
		FROM chat_message_join
		WHERE chat_id IN (%s)`, chatIDs)

	var count int
	if err := db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func inClause(format string, ids []int) (string, []any) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return fmt.Sprintf(format, placeholders), args
}
