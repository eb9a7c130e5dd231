// Package credential holds the authenticated session material and its
// persistent store. The store is the only owner of the persisted file;
// everything else borrows the in-memory value.
package credential

import (
	"sort"
	"strings"
	"time"
)

// Credential is the cookie/token set returned by a confirmed login.
type Credential struct {
	Cookies      map[string]string `json:"cookies"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	ExpiresAt    int64             `json:"expires_at"` // unix seconds
	AccountID    string            `json:"account_id"`
}

// Valid reports whether the credential is complete enough to persist or
// attach to a request.
func (c *Credential) Valid() bool {
	if c == nil {
		return false
	}
	return len(c.Cookies) > 0 &&
		c.AccessToken != "" &&
		c.RefreshToken != "" &&
		c.AccountID != "" &&
		c.ExpiresAt > 0
}

// Expired reports whether the credential's expiry has passed.
func (c *Credential) Expired(now time.Time) bool {
	return now.Unix() >= c.ExpiresAt
}

// ExpiresWithin reports whether the credential expires inside the lead window.
func (c *Credential) ExpiresWithin(now time.Time, lead time.Duration) bool {
	return now.Add(lead).Unix() >= c.ExpiresAt
}

// Cookie returns a single cookie value, "" when absent. The platform's
// mutating endpoints require the csrf cookie ("bili_jct") echoed in the form.
func (c *Credential) Cookie(name string) string {
	if c == nil {
		return ""
	}
	return c.Cookies[name]
}

// CookieHeader renders the cookies as a request header value, sorted by name
// so output is stable.
func (c *Credential) CookieHeader() string {
	if c == nil || len(c.Cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(c.Cookies))
	for name := range c.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(c.Cookies[name])
	}
	return b.String()
}

// Clone returns a deep copy, so a caller can hand the credential across a
// lock boundary without sharing the cookie map.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	out.Cookies = make(map[string]string, len(c.Cookies))
	for k, v := range c.Cookies {
		out.Cookies[k] = v
	}
	return &out
}
