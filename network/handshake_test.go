package network

import (
	"testing"
	"time"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

func TestCookieTableValidatesCorrectSignature(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	c := NewCookieTable()
	now := time.Now()
	cookie, ok := c.Issue("8.8.8.8:7075", now)
	if !ok {
		t.Fatalf("Issue: want ok")
	}

	sig := SignCookie(priv, cookie)
	if !c.Validate("8.8.8.8:7075", pub, sig, now) {
		t.Fatalf("Validate: want true for correctly signed cookie")
	}
}

func TestCookieTableRejectsWrongSigner(t *testing.T) {
	_, realPub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	otherPriv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	c := NewCookieTable()
	now := time.Now()
	cookie, _ := c.Issue("8.8.8.8:7075", now)

	// otherPriv signs the right cookie, but the caller presents realPub as
	// the claimed node ID: signature verification must fail.
	sig := SignCookie(otherPriv, cookie)
	if c.Validate("8.8.8.8:7075", realPub, sig, now) {
		t.Fatalf("Validate: want false when signer doesn't match claimed node ID")
	}
}

func TestCookieTableRejectsExpiredCookie(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	c := NewCookieTable()
	issuedAt := time.Now()
	cookie, _ := c.Issue("8.8.8.8:7075", issuedAt)
	sig := SignCookie(priv, cookie)

	past := issuedAt.Add(synCookieCutoff + time.Minute)
	if c.Validate("8.8.8.8:7075", pub, sig, past) {
		t.Fatalf("Validate: want false for cookie past synCookieCutoff")
	}
}

func TestCookieTableValidateIsOneShot(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	c := NewCookieTable()
	now := time.Now()
	cookie, _ := c.Issue("8.8.8.8:7075", now)
	sig := SignCookie(priv, cookie)

	if !c.Validate("8.8.8.8:7075", pub, sig, now) {
		t.Fatalf("first Validate: want true")
	}
	if c.Validate("8.8.8.8:7075", pub, sig, now) {
		t.Fatalf("second Validate: want false, cookie already consumed")
	}
}

func TestCookieTableEnforcesPerIPCap(t *testing.T) {
	c := NewCookieTable()
	now := time.Now()
	admitted := 0
	for i := 0; i < synCookiePerIPCap+5; i++ {
		endpoint := "8.8.8.8:" + portOffset(i)
		if _, ok := c.Issue(endpoint, now); ok {
			admitted++
		}
	}
	if admitted != synCookiePerIPCap {
		t.Fatalf("admitted = %d, want exactly the per-IP cookie cap %d", admitted, synCookiePerIPCap)
	}
}
