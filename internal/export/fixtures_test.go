package export

import (
	"database/sql"
	"path/filepath"
	"strconv"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/DocSpring/chattomap/internal/chatdb"
	"github.com/DocSpring/chattomap/internal/contacts"
)

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

// testChatDB builds a throwaway chat.db for pipeline tests.
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

func (f *testChatDB) open() *chatdb.DB {
	f.t.Helper()
	db, err := chatdb.Open(f.path)
	if err != nil {
		f.t.Fatal(err)
	}
	f.t.Cleanup(func() { _ = db.Close() })
	return db
}

func (f *testChatDB) handle(identifier string) int {
	f.t.Helper()
	id := f.nextHandle
	f.nextHandle++
	if _, err := f.db.Exec(
		`INSERT INTO handle (ROWID, id, service) VALUES (?, ?, 'iMessage')`,
		id, identifier); err != nil {
		f.t.Fatal(err)
	}
	return id
}

func (f *testChatDB) chat(identifier, displayName string) int {
	f.t.Helper()
	id := f.nextChat
	f.nextChat++
	var name any
	if displayName != "" {
		name = displayName
	}
	if _, err := f.db.Exec(
		`INSERT INTO chat (ROWID, guid, chat_identifier, service_name, display_name, style) VALUES (?, ?, ?, 'iMessage', ?, 45)`,
		id, "chat-"+identifier, identifier, name); err != nil {
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

func (f *testChatDB) message(chatID, handleID int, text string, date int64, fromMe bool) {
	f.t.Helper()
	id := f.nextMessage
	f.nextMessage++
	var body any
	if text != "" {
		body = text
	}
	if _, err := f.db.Exec(
		`INSERT INTO message (ROWID, guid, text, handle_id, service, date, is_from_me) VALUES (?, ?, ?, ?, 'iMessage', ?, ?)`,
		id, "msg-"+strconv.Itoa(id), body, handleID, date, fromMe); err != nil {
		f.t.Fatal(err)
	}
	if _, err := f.db.Exec(
		`INSERT INTO chat_message_join (chat_id, message_id, message_date) VALUES (?, ?, ?)`,
		chatID, id, date); err != nil {
		f.t.Fatal(err)
	}
}

// pipelineIndex resolves +15551234567 to Alice Smith and nobody else.
func pipelineIndex(t *testing.T) *contacts.Index {
	t.Helper()
	alice, ok := contacts.NameFromParts("Alice", "Smith")
	if !ok {
		t.Fatal("bad fixture name")
	}
	byKey := make(map[string]contacts.Name)
	for _, key := range contacts.PhoneKeys("+15551234567") {
		byKey[key] = alice
	}
	return contacts.NewIndex(byKey)
}

// collect accumulates every progress update an export emits.
type collect struct {
	updates []Progress
}

func (c *collect) Emit(p Progress) {
	c.updates = append(c.updates, p)
}
