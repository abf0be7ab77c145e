package network

import (
	"crypto/rand"
	"net"
	"sync"
	"time"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// synCookieCutoff is how long an issued cookie remains valid; a response
// that arrives after this is rejected as if it had never been issued.
const synCookieCutoff = 2 * time.Minute

// synCookiePerIPCap bounds how many outstanding cookies a single IP may
// hold at once, so a handshake flood can't grow the cookie table without
// bound.
const synCookiePerIPCap = 10

type cookieEntry struct {
	cookie  [32]byte
	issued  time.Time
}

// CookieTable issues and validates the random syn-cookies a node-ID
// handshake is built on: every query gets a fresh cookie, and a response
// is only accepted if it signs that exact cookie before it expires.
type CookieTable struct {
	mu    sync.Mutex
	byEnd map[string]*cookieEntry
	byIP  map[string]int
}

// NewCookieTable constructs an empty CookieTable.
func NewCookieTable() *CookieTable {
	return &CookieTable{
		byEnd: make(map[string]*cookieEntry),
		byIP:  make(map[string]int),
	}
}

// Issue generates and records a fresh cookie for endpoint, or returns the
// still-valid one already outstanding for it. ok is false if endpoint's IP
// is already at its cookie cap.
func (c *CookieTable) Issue(endpoint string, now time.Time) (cookie [32]byte, ok bool) {
	ip := hostOf(endpoint)
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.byEnd[endpoint]; exists && now.Sub(e.issued) <= synCookieCutoff {
		return e.cookie, true
	}
	if c.byIP[ip] >= synCookiePerIPCap {
		return cookie, false
	}
	if _, err := rand.Read(cookie[:]); err != nil {
		return cookie, false
	}
	c.byEnd[endpoint] = &cookieEntry{cookie: cookie, issued: now}
	c.byIP[ip]++
	return cookie, true
}

// Validate checks that sig is a valid signature by nodeID over the cookie
// outstanding for endpoint, issued within synCookieCutoff of now. The
// cookie is consumed (one validation attempt per issued cookie) regardless
// of outcome.
func (c *CookieTable) Validate(endpoint string, nodeID crypto.PublicKey, sig crypto.Signature, now time.Time) bool {
	c.mu.Lock()
	e, ok := c.byEnd[endpoint]
	if ok {
		delete(c.byEnd, endpoint)
		ip := hostOf(endpoint)
		c.byIP[ip]--
		if c.byIP[ip] <= 0 {
			delete(c.byIP, ip)
		}
	}
	c.mu.Unlock()
	if !ok || now.Sub(e.issued) > synCookieCutoff {
		return false
	}
	return crypto.Verify(nodeID, e.cookie[:], sig) == nil
}

// Purge drops every outstanding cookie older than synCookieCutoff.
func (c *CookieTable) Purge(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for end, e := range c.byEnd {
		if now.Sub(e.issued) > synCookieCutoff {
			delete(c.byEnd, end)
			ip := hostOf(end)
			c.byIP[ip]--
			if c.byIP[ip] <= 0 {
				delete(c.byIP, ip)
			}
		}
	}
}

func hostOf(endpoint string) string {
	host, _, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint
	}
	return host
}

// SignCookie produces the response half of a handshake: a signature by
// priv over cookie, proving ownership of the node ID priv.Public().
func SignCookie(priv crypto.PrivateKey, cookie [32]byte) crypto.Signature {
	return crypto.Sign(priv, cookie[:])
}
