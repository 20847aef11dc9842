package chatdb

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// Minimal chat.db schema covering the columns this package reads.
const chatDBSchema = `
CREATE TABLE handle (
	ROWID INTEGER PRIMARY KEY,
	id TEXT NOT NULL,
	country TEXT,
	service TEXT,
	uncanonicalized_id TEXT,
	person_centric_id TEXT
);
CREATE TABLE chat (
	ROWID INTEGER PRIMARY KEY,
	guid TEXT NOT NULL,
	chat_identifier TEXT NOT NULL,
	service_name TEXT,
	display_name TEXT,
	style INTEGER,
	room_name TEXT
);
CREATE TABLE chat_handle_join (
	chat_id INTEGER,
	handle_id INTEGER
);
CREATE TABLE message (
	ROWID INTEGER PRIMARY KEY,
	guid TEXT NOT NULL,
	text TEXT,
	attributedBody BLOB,
	handle_id INTEGER,
	service TEXT,
	date INTEGER,
	is_from_me INTEGER DEFAULT 0
);
CREATE TABLE chat_message_join (
	chat_id INTEGER,
	message_id INTEGER,
	message_date INTEGER
);`

// testChatDB builds a throwaway chat.db with realistic schema and ids.
type testChatDB struct {
	t    *testing.T
	path string
	db   *sql.DB

	nextHandle  int
	nextChat    int
	nextMessage int
}

func newTestChatDB(t *testing.T) *testChatDB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(chatDBSchema); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &testChatDB{t: t, path: path, db: db, nextHandle: 1, nextChat: 1, nextMessage: 1}
}

func (f *testChatDB) open() *DB {
	f.t.Helper()
	db, err := Open(f.path)
	if err != nil {
		f.t.Fatal(err)
	}
	f.t.Cleanup(func() { _ = db.Close() })
	return db
}

func (f *testChatDB) handle(identifier, personCentricID string) int {
	f.t.Helper()
	id := f.nextHandle
	f.nextHandle++
	if _, err := f.db.Exec(
		`INSERT INTO handle (ROWID, id, service, person_centric_id) VALUES (?, ?, 'iMessage', ?)`,
		id, identifier, nullable(personCentricID)); err != nil {
		f.t.Fatal(err)
	}
	return id
}

func (f *testChatDB) chat(identifier, displayName string, style int) int {
	f.t.Helper()
	id := f.nextChat
	f.nextChat++
	if _, err := f.db.Exec(
		`INSERT INTO chat (ROWID, guid, chat_identifier, service_name, display_name, style) VALUES (?, ?, ?, 'iMessage', ?, ?)`,
		id, "chat-"+identifier, identifier, nullable(displayName), style); err != nil {
		f.t.Fatal(err)
	}
	return id
}

func (f *testChatDB) member(chatID, handleID int) {
	f.t.Helper()
	if _, err := f.db.Exec(
		`INSERT INTO chat_handle_join (chat_id, handle_id) VALUES (?, ?)`, chatID, handleID); err != nil {
		f.t.Fatal(err)
	}
}

type testMessage struct {
	text     string
	body     []byte
	handleID int
	chatID   int
	date     int64
	fromMe   bool
}

func (f *testChatDB) message(m testMessage) int {
	f.t.Helper()
	id := f.nextMessage
	f.nextMessage++
	if _, err := f.db.Exec(
		`INSERT INTO message (ROWID, guid, text, attributedBody, handle_id, service, date, is_from_me) VALUES (?, ?, ?, ?, ?, 'iMessage', ?, ?)`,
		id, "msg-"+itoa(id), nullable(m.text), m.body, m.handleID, m.date, m.fromMe); err != nil {
		f.t.Fatal(err)
	}
	if m.chatID != 0 {
		if _, err := f.db.Exec(
			`INSERT INTO chat_message_join (chat_id, message_id, message_date) VALUES (?, ?, ?)`,
			m.chatID, id, m.date); err != nil {
			f.t.Fatal(err)
		}
	}
	return id
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// attributedBlob assembles a synthetic typedstream fragment carrying text
// the way real attributedBody payloads do.
func attributedBlob(text string) []byte {
	blob := []byte{0x04, 0x0b}
	blob = append(blob, []byte("streamtyped")...)
	blob = append(blob, nsStringMarker...)
	blob = append(blob, 0x01, 0x94, 0x84, 0x01, '+')
	n := len(text)
	if n < 0x80 {
		blob = append(blob, byte(n))
	} else {
		blob = append(blob, 0x81, byte(n), byte(n>>8))
	}
	blob = append(blob, []byte(text)...)
	blob = append(blob, 0x86, 0x84)
	return blob
}
