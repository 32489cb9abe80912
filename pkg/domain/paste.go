package domain

import (
	"time"
)

const DefaultSyntax = "plaintext"

type Paste struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Title     string     `json:"title"`
	Syntax    string     `json:"syntax"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	Tags      []Tag      `json:"tags"`
}

// Expired reports whether p is no longer visible at now. A paste expiring
// exactly at now counts as expired.
func (p *Paste) Expired(now time.Time) bool {
	return !NotExpired(p.ExpiresAt, now)
}

type CreateParams struct {
	Text   string
	Title  string
	Syntax string
	Expiry Expiry
	Tags   []string
}

// SyntaxOptions is the closed set of labels a paste may carry.
var SyntaxOptions = []string{
	"plaintext",
	"markdown",
	"cpp",
	"java",
	"javascript",
	"typescript",
	"python",
	"yaml",
	"json",
	"css",
	"html",
}

func ValidSyntax(s string) bool {
	for _, o := range SyntaxOptions {
		if o == s {
			return true
		}
	}
	return false
}
