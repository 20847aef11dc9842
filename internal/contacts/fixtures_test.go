package contacts

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

const macosSchema = `
CREATE TABLE ZABCDRECORD (
	Z_PK INTEGER PRIMARY KEY,
	Z_ENT INTEGER,
	ZFIRSTNAME TEXT,
	ZLASTNAME TEXT
);
CREATE TABLE ZABCDPHONENUMBER (
	Z_PK INTEGER PRIMARY KEY,
	ZOWNER INTEGER,
	ZFULLNUMBER TEXT
);
CREATE TABLE ZABCDEMAILADDRESS (
	Z_PK INTEGER PRIMARY KEY,
	ZOWNER INTEGER,
	ZADDRESS TEXT,
	ZADDRESSNORMALIZED TEXT
);`

const iosSchema = `
CREATE TABLE ABPersonFullTextSearch_content (
	docid INTEGER PRIMARY KEY,
	c0First TEXT,
	c1Last TEXT,
	c16Phone TEXT,
	c17Email TEXT
);`

// testContact describes one address-book row for fixture databases.
type testContact struct {
	first  string
	last   string
	phones []string
	emails []string
}

// newMacOSAddressBook writes a macOS-schema address book to dir and returns
// its path.
func newMacOSAddressBook(t *testing.T, dir string, contacts []testContact) string {
	t.Helper()
	path := filepath.Join(dir, "AddressBook-v22.abcddb")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(macosSchema); err != nil {
		t.Fatal(err)
	}

	nextPhone, nextEmail := 1, 1
	for i, c := range contacts {
		pk := i + 1
		if _, err := db.Exec(
			`INSERT INTO ZABCDRECORD (Z_PK, Z_ENT, ZFIRSTNAME, ZLASTNAME) VALUES (?, 19, ?, ?)`,
			pk, nullable(c.first), nullable(c.last)); err != nil {
			t.Fatal(err)
		}
		for _, p := range c.phones {
			if _, err := db.Exec(
				`INSERT INTO ZABCDPHONENUMBER (Z_PK, ZOWNER, ZFULLNUMBER) VALUES (?, ?, ?)`,
				nextPhone, pk, p); err != nil {
				t.Fatal(err)
			}
			nextPhone++
		}
		for _, e := range c.emails {
			if _, err := db.Exec(
				`INSERT INTO ZABCDEMAILADDRESS (Z_PK, ZOWNER, ZADDRESS, ZADDRESSNORMALIZED) VALUES (?, ?, ?, ?)`,
				nextEmail, pk, e, e); err != nil {
				t.Fatal(err)
			}
			nextEmail++
		}
	}
	return path
}

// newIOSAddressBook writes an iOS-backup-schema address book to dir. Phones
// and emails are stored space-separated in the wide text columns.
func newIOSAddressBook(t *testing.T, dir string, contacts []testContact) string {
	t.Helper()
	path := filepath.Join(dir, "AddressBook.sqlitedb")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(iosSchema); err != nil {
		t.Fatal(err)
	}
	for i, c := range contacts {
		if _, err := db.Exec(
			`INSERT INTO ABPersonFullTextSearch_content (docid, c0First, c1Last, c16Phone, c17Email) VALUES (?, ?, ?, ?, ?)`,
			i+1, nullable(c.first), nullable(c.last),
			joined(c.phones), joined(c.emails)); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func mkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
}

func writeGarbage(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("this is not a sqlite database"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func joined(vals []string) any {
	if len(vals) == 0 {
		return nil
	}
	out := vals[0]
	for _, v := range vals[1:] {
		out += " " + v
	}
	return out
}

// testIndex builds an in-memory index with Alice (US phone), Bob (NZ phone)
// and Charlie (email), mirroring the fixture set used across this package.
func testIndex(t *testing.T) *Index {
	t.Helper()
	byKey := make(map[string]Name)

	alice, _ := NameFromParts("Alice", "Johnson")
	for _, key := range PhoneKeys("+15551234567") {
		byKey[key] = alice
	}

	bob, _ := NameFromParts("Bob", "Williams")
	for _, key := range PhoneKeys("+6421555123") {
		byKey[key] = bob
	}

	charlie, _ := NameFromParts("Charlie", "Brown")
	if norm, ok := NormalizeEmail("charlie@example.com"); ok {
		byKey[norm] = charlie
	}

	return NewIndex(byKey)
}
