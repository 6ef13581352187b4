package database

import "strings"

// Driver names a storage backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string {
	return string(d)
}

// DetectDriver picks the backend from a connection string. An empty string
// selects the local SQLite file; anything unrecognised is treated as a
// PostgreSQL DSN.
func DetectDriver(url string) Driver {
	if url == "" {
		return DriverSQLite
	}
	scheme, _, hasScheme := strings.Cut(url, ":")
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return DriverPostgres
	case "sqlite", "file":
		return DriverSQLite
	}
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(url, ext) {
			return DriverSQLite
		}
	}
	if !hasScheme && strings.HasPrefix(url, "/") {
		return DriverSQLite
	}
	return DriverPostgres
}

func (d Driver) IsValid() bool {
	return d == DriverPostgres || d == DriverSQLite
}
