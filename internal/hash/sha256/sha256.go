// Package sha256 names archived page snapshots by the digest of their path.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// Namer derives blob object names for page snapshots.
type Namer struct {
	prefix string
}

// New returns a Namer rooted at prefix. An empty prefix writes at the bucket
// root.
func New(prefix string) *Namer {
	return &Namer{prefix: strings.Trim(prefix, "/")}
}

// Digest returns the hex SHA-256 of s.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ObjectName returns "<prefix>/<host>/<sha256(pagePath)>.html".
func (n *Namer) ObjectName(host, pagePath string) string {
	host = strings.NewReplacer("/", "_", ":", "_").Replace(strings.ToLower(host))
	return path.Join(n.prefix, host, Digest(pagePath)+".html")
}
