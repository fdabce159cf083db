package sqldb

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vietddude/dbwatch/internal/core/domain"
)

// DSN builds the driver connection string from credentials. The URL is
// host[:port]/database (or service name for Oracle).
func DSN(driver string, creds domain.Credentials) (string, error) {
	if creds.URL == "" {
		return "", fmt.Errorf("database url is empty")
	}
	user := url.UserPassword(creds.Username, creds.Password).String()

	switch driver {
	case "pgx", "postgres":
		return "postgres://" + user + "@" + creds.URL, nil
	case "oracle":
		dsn := "oracle://" + user + "@" + creds.URL
		switch role := strings.ToLower(creds.Role); role {
		case "sysdba", "sysasm", "sysoper":
			dsn += "?" + url.Values{"dba privilege": {role}}.Encode()
		}
		return dsn, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}
