package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks rules the struct tags cannot express
func (c *Config) Validate() error {
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session.secret must be at least 32 characters (got %d)", len(c.Session.Secret))
	}
	if c.Session.Duration <= 0 {
		return fmt.Errorf("session.duration must be > 0")
	}

	switch strings.ToLower(c.Database.Type) {
	case "sqlite", "sqlite3", "":
	case "postgres", "postgresql", "mysql":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for %s", c.Database.Type)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Assets.Dir != "" && c.Assets.BaseURL != "" {
		return fmt.Errorf("assets.dir and assets.base_url are mutually exclusive")
	}
	if c.Assets.BaseURL != "" {
		u, err := url.Parse(c.Assets.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("assets.base_url must be an absolute URL")
		}
	}

	if c.Reports.RateLimit <= 0 {
		return fmt.Errorf("reports.rate_limit must be > 0 (got %d)", c.Reports.RateLimit)
	}
	if c.Reports.RateWindow <= 0 {
		return fmt.Errorf("reports.rate_window must be > 0")
	}
	if c.Reports.IPHashKey == "" {
		c.Reports.IPHashKey = c.Session.Secret
	}

	return nil
}
