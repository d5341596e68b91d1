package commands

import (
	"database/sql"
	"fmt"
	"strings"
)

// maskDatabaseURL hides credentials in a postgres URL before printing it.
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	return "postgres://***:***@" + url[at+1:]
}

// describeConnection reports which database (and host, when the server
// exposes one) the CLI is talking to.
func describeConnection(db *sql.DB) string {
	if db == nil {
		return "Not connected"
	}

	var dbName string
	if err := db.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		return "Connected (unknown database)"
	}

	var host sql.NullString
	if err := db.QueryRow("SELECT inet_server_addr()::text").Scan(&host); err != nil || !host.Valid {
		return fmt.Sprintf("Connected to %s", dbName)
	}
	return fmt.Sprintf("Connected to %s on %s", dbName, host.String)
}
