package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.chatmap.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatmap")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// LedgerDBPath returns the app-owned chatmap.db path.
func LedgerDBPath() string {
	return filepath.Join(BaseDir(), "chatmap.db")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the CLI log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "chatmap.log")
}

// ChatDBPath returns the default macOS iMessage database path.
func ChatDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Messages", "chat.db")
}

// AddressBookSourcesDir returns the macOS Contacts sources directory scanned
// in discovery mode.
func AddressBookSourcesDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Application Support", "AddressBook", "Sources")
}

// EnsureBaseDir creates the app directory tree with owner-only permissions.
func EnsureBaseDir() error {
	for _, d := range []string{BaseDir(), LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
