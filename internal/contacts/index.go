package contacts

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Index maps normalized identifier keys (phone variants, emails) to Names.
// It is built once per invocation and immutable afterwards.
type Index struct {
	byKey map[string]Name
}

// NewIndex wraps a prebuilt key map. Used by tests and by callers that
// assemble entries by hand.
func NewIndex(byKey map[string]Name) *Index {
	if byKey == nil {
		byKey = make(map[string]Name)
	}
	return &Index{byKey: byKey}
}

// Len returns the number of indexed identifier keys.
func (idx *Index) Len() int {
	return len(idx.byKey)
}

// Build constructs an index from a single address-book database.
// The schema family is probed: iOS backup databases carry the
// ABPersonFullTextSearch_content table, macOS databases do not.
func Build(path string) (*Index, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("open address book %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	ios, err := tableExists(db, "ABPersonFullTextSearch_content")
	if err != nil {
		return nil, fmt.Errorf("probe schema %s: %w", path, err)
	}
	if ios {
		return buildFromIOS(db)
	}
	return buildFromMacOS(db)
}

// Discover scans every AddressBook source database under sourcesDir and
// merges their entries. A source that cannot be opened or queried is
// skipped; the scan itself never fails.
func Discover(sourcesDir string, logger *zap.Logger) *Index {
	merged := make(map[string]Name)

	for _, dbPath := range findSourceDBs(sourcesDir) {
		sub, err := Build(dbPath)
		if err != nil {
			logger.Warn("skipping unreadable address book source",
				zap.String("path", dbPath), zap.Error(err))
			continue
		}
		for key, name := range sub.byKey {
			upsertBest(merged, key, name)
		}
	}

	return NewIndex(merged)
}

// Lookup resolves a raw message-store identifier to a Name.
//
// The identifier may be a space-separated list. An email token decides the
// lookup outright, hit or miss; phone tokens try every derived key variant
// and return on the first hit.
func (idx *Index) Lookup(id string) (Name, bool) {
	for _, part := range strings.Fields(id) {
		if looksLikeEmail(part) {
			norm, ok := NormalizeEmail(part)
			if !ok {
				return Name{}, false
			}
			name, found := idx.byKey[norm]
			if found {
				return name.clone(), true
			}
			return Name{}, false
		}
		for _, key := range PhoneKeys(part) {
			if name, found := idx.byKey[key]; found {
				return name.clone(), true
			}
		}
	}
	return Name{}, false
}

func buildFromMacOS(db *sql.DB) (*Index, error) {
	rows, err := db.Query(`
		SELECT r.ZFIRSTNAME, r.ZLASTNAME, p.ZFULLNUMBER, e.ZADDRESSNORMALIZED
		FROM ZABCDRECORD AS r
		LEFT JOIN ZABCDPHONENUMBER AS p ON r.Z_PK = p.ZOWNER
		LEFT JOIN ZABCDEMAILADDRESS AS e ON r.Z_PK = e.ZOWNER`)
	if err != nil {
		return nil, fmt.Errorf("query macos records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byKey := make(map[string]Name)
	for rows.Next() {
		var first, last, phone, email sql.NullString
		if err := rows.Scan(&first, &last, &phone, &email); err != nil {
			return nil, fmt.Errorf("scan macos record: %w", err)
		}
		name, ok := NameFromParts(first.String, last.String)
		if !ok {
			continue
		}
		if email.Valid {
			for _, key := range ParseEmailList(email.String) {
				upsertBest(byKey, key, name)
			}
		}
		if phone.Valid {
			for _, key := range PhoneKeys(phone.String) {
				upsertBest(byKey, key, name)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate macos records: %w", err)
	}
	return NewIndex(byKey), nil
}

func buildFromIOS(db *sql.DB) (*Index, error) {
	// iOS backups store all of a contact's phones and emails as
	// space-separated strings in two wide text columns.
	rows, err := db.Query(`
		SELECT c0First, c1Last, c16Phone, c17Email
		FROM ABPersonFullTextSearch_content`)
	if err != nil {
		return nil, fmt.Errorf("query ios records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byKey := make(map[string]Name)
	for rows.Next() {
		var first, last, phones, emails sql.NullString
		if err := rows.Scan(&first, &last, &phones, &emails); err != nil {
			return nil, fmt.Errorf("scan ios record: %w", err)
		}
		name, ok := NameFromParts(first.String, last.String)
		if !ok {
			continue
		}
		if phones.Valid {
			for _, token := range strings.Fields(phones.String) {
				for _, key := range PhoneKeys(token) {
					upsertBest(byKey, key, name)
				}
			}
		}
		if emails.Valid {
			for _, token := range strings.Fields(emails.String) {
				if norm, ok := NormalizeEmail(token); ok {
					upsertBest(byKey, norm, name)
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ios records: %w", err)
	}
	return NewIndex(byKey), nil
}

func openReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var one int
	err := db.QueryRow(`
		SELECT 1 FROM sqlite_master
		WHERE type IN ('table','view') AND name = ? LIMIT 1`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// findSourceDBs lists AddressBook-v22.abcddb files one level below
// sourcesDir, sorted by path so multi-source merges are deterministic.
func findSourceDBs(sourcesDir string) []string {
	entries, err := os.ReadDir(sourcesDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dbPath := filepath.Join(sourcesDir, entry.Name(), "AddressBook-v22.abcddb")
		if info, err := os.Stat(dbPath); err == nil && !info.IsDir() {
			out = append(out, dbPath)
		}
	}
	sort.Strings(out)
	return out
}
