package models

import (
	"time"
)

// CredentialSet is one platform's credential fields for one user. Values are
// plaintext here; the repository encrypts them at rest.
type CredentialSet struct {
	UserID      int64             `db:"user_id" json:"-"`
	Platform    string            `db:"platform" json:"platform"`
	Fields      map[string]string `db:"fields" json:"fields"`
	LastUpdated *time.Time        `db:"last_updated" json:"lastUpdated,omitempty"`
}

// Empty reports whether every field is blank.
func (c *CredentialSet) Empty() bool {
	if c == nil {
		return true
	}
	for _, v := range c.Fields {
		if v != "" {
			return false
		}
	}
	return true
}
