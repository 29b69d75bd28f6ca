package model

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// SessionIDPrefix namespaces identifiers generated by this client.
const SessionIDPrefix = "web_"

const (
	sessionIDLength   = 10
	sessionIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

type SessionID string

// NewSessionID generates an opaque session identifier: the namespace prefix
// followed by random base-36 characters.
func NewSessionID() SessionID {
	var sb strings.Builder
	sb.WriteString(SessionIDPrefix)

	base := big.NewInt(int64(len(sessionIDAlphabet)))
	for range sessionIDLength {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			// crypto/rand never fails on supported platforms
			panic(err)
		}
		sb.WriteByte(sessionIDAlphabet[n.Int64()])
	}

	return SessionID(sb.String())
}

func (x SessionID) String() string { return string(x) }

// Valid reports whether the identifier is usable as a session key.
func (x SessionID) Valid() bool {
	s := string(x)
	return s != "" && strings.TrimSpace(s) == s && !strings.ContainsAny(s, "\r\n")
}
