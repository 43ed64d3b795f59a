package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/ticker-relay/internal/config"
)

// ApplicationName is reported to the server so relay sessions are easy to spot in pg_stat_activity.
const ApplicationName = "ticker-relay"

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	params := url.Values{}
	params.Set("sslmode", sslMode)
	params.Set("application_name", ApplicationName)

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(cfg.User),
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		params.Encode(),
	)
}
