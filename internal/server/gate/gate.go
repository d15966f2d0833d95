// Package gate implements the static header handshake required on every
// request and the admin password check required on privileged operations.
package gate

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"filegate/internal/server/config"
)

type requiredHeader struct {
	name  string
	value string
}

// Gate holds the expected handshake values and the admin secret.
type Gate struct {
	headers       []requiredHeader
	host          string
	adminPassword string
	adminHash     []byte
}

// New builds a Gate. When adminPasswordHash is non-empty it is treated as a
// bcrypt hash and adminPassword is ignored.
func New(cfg config.GateConfig, adminPassword, adminPasswordHash string) *Gate {
	g := &Gate{
		headers: []requiredHeader{
			{name: "Name", value: cfg.Name},
			{name: "Connection", value: cfg.Connection},
			{name: "Models", value: cfg.Models},
			{name: "Version", value: cfg.Version},
		},
		host:          cfg.Host,
		adminPassword: adminPassword,
	}
	if adminPasswordHash != "" {
		g.adminHash = []byte(adminPasswordHash)
	}
	return g
}

// HeaderNames lists the handshake headers, for CORS and clients.
func (g *Gate) HeaderNames() []string {
	names := make([]string, 0, len(g.headers))
	for _, h := range g.headers {
		names = append(names, h.name)
	}
	return names
}

// Authorize reports whether every handshake header matches exactly.
// Header names are matched case-insensitively; values are not.
// Go moves the Host header out of http.Header, so it is passed separately.
func (g *Gate) Authorize(header http.Header, host string) bool {
	for _, h := range g.headers {
		if !equal(header.Get(h.name), h.value) {
			return false
		}
	}
	if g.host != "" && !equal(host, g.host) {
		return false
	}
	return true
}

// AuthorizeAdmin reports whether password matches the configured admin secret.
func (g *Gate) AuthorizeAdmin(password string) bool {
	if password == "" {
		return false
	}
	if g.adminHash != nil {
		return bcrypt.CompareHashAndPassword(g.adminHash, []byte(password)) == nil
	}
	return equal(password, g.adminPassword)
}

func equal(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
