package util

import (
	"net/url"
	"strings"
)

// MaskURL oculta credenciales de una URL o DSN de base de datos.
//
//	postgres://app:pw@h/db       -> postgres://app:***@h/db
//	app:pw@tcp(h:3306)/db        -> app:***@tcp(h:3306)/db
//	host=h password=pw dbname=x  -> host=h password=*** dbname=x
func MaskURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		prefix := ""
		raw := s
		if strings.HasPrefix(raw, "jdbc:") {
			prefix, raw = "jdbc:", strings.TrimPrefix(raw, "jdbc:")
		}
		if u, err := url.Parse(raw); err == nil {
			if _, has := u.User.Password(); has {
				u.User = url.UserPassword(u.User.Username(), "***")
			}
			q := u.Query()
			if q.Has("password") {
				q.Set("password", "***")
				u.RawQuery = q.Encode()
			}
			// url.String escapa "*"; lo restauramos para que sea legible
			return prefix + strings.ReplaceAll(u.String(), "%2A%2A%2A", "***")
		}
		return s
	}
	// DSN estilo go-sql-driver: user:pass@tcp(...)/db
	if at := strings.LastIndex(s, "@"); at > 0 {
		cred := s[:at]
		if i := strings.IndexByte(cred, ':'); i >= 0 {
			return cred[:i] + ":***" + s[at:]
		}
		return s
	}
	// DSN key=value (libpq)
	parts := strings.Fields(s)
	for i, p := range parts {
		if k, _, ok := strings.Cut(p, "="); ok && strings.EqualFold(k, "password") {
			parts[i] = k + "=***"
		}
	}
	return strings.Join(parts, " ")
}
