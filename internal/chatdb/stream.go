package chatdb

import (
	"context"
	"database/sql"
	"fmt"
)

// Message is one decoded row of the message table, joined to its chat.
// Text is already materialized from either the plain text column or the
// rich attributedBody payload.
type Message struct {
	ID       int
	ChatID   int
	HandleID int
	Date     int64
	IsFromMe bool
	Text     string
}

// StreamMessages walks every message belonging to the selected chats in a
// single pass, ordered by date, invoking fn per message. A non-nil error
// from fn aborts the stream.
func (db *DB) StreamMessages(ctx context.Context, chatIDs []int, fn func(Message) error) error {
	if len(chatIDs) == 0 {
		return nil
	}
	query, args := inClause(`
		SELECT m.ROWID, cmj.chat_id, COALESCE(m.handle_id, 0), m.date, m.is_from_me,
		       m.text, m.attributedBody
		FROM message m
		JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
		WHERE cmj.chat_id IN (%s)
		ORDER BY m.date`, chatIDs)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("stream messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var m Message
		var text sql.NullString
		var body []byte
		if err := rows.Scan(&m.ID, &m.ChatID, &m.HandleID, &m.Date, &m.IsFromMe, &text, &body); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		if text.Valid && text.String != "" {
			m.Text = text.String
		} else {
			// Decode failure yields empty text, which the caller drops.
			m.Text = ExtractAttributedText(body)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return rows.Err()
}
