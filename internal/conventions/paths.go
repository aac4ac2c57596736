package conventions

import (
	"path/filepath"

	"k8s.io/client-go/util/homedir"
)

const (
	// DefaultDataDir is the default convq data directory name (relative to home).
	DefaultDataDir = ".convq"
	// DBFile is the SQLite database filename inside the data directory.
	DBFile = "convq.db"
	// SettingsFile is the optional settings filename inside the data directory.
	SettingsFile = "config.yaml"
	// EnvFile is the dotenv file loaded from the working directory.
	EnvFile = ".env"
	// MarkdownExt is the extension of the written conversion results.
	MarkdownExt = ".md"
)

// DataDir returns the convq data directory under home.
func DataDir(home string) string {
	return filepath.Join(home, DefaultDataDir)
}

// DBPath returns the database path inside a data directory.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// SettingsPath returns the settings file path inside a data directory.
func SettingsPath(dataDir string) string {
	return filepath.Join(dataDir, SettingsFile)
}

// DefaultDBPath returns the database path in the user home data directory.
func DefaultDBPath() string {
	return DBPath(DataDir(homedir.HomeDir()))
}

// DefaultSettingsPath returns the settings path in the user home data directory.
func DefaultSettingsPath() string {
	return SettingsPath(DataDir(homedir.HomeDir()))
}
