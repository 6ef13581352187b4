package database

import (
	"strconv"
	"strings"
)

// Rebind rewrites '?' placeholders into the driver's native form.
// Repositories write a single dialect; PostgreSQL needs $1..$n.
// Placeholders inside single-quoted literals are left alone.
func (d Driver) Rebind(query string) string {
	if d != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
