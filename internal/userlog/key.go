package userlog

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTransport is assumed for keys written without a transport.
const DefaultTransport = "telegram"

// Key identifies a user. Telegram and WhatsApp ids are drawn from
// different spaces and may collide, so the transport is part of the key.
type Key struct {
	Transport string `json:"transport"`
	ID        int64  `json:"user_id"`
}

// NewKey builds a key, filling in DefaultTransport when transport is empty.
func NewKey(transport string, id int64) Key {
	if transport == "" {
		transport = DefaultTransport
	}
	return Key{Transport: transport, ID: id}
}

func (k Key) String() string {
	return k.Transport + ":" + strconv.FormatInt(k.ID, 10)
}

// IsZero reports whether k names no user.
func (k Key) IsZero() bool { return k.ID == 0 }

// ParseKey reads "whatsapp:628123" or a bare id, which is taken as a
// DefaultTransport id.
func ParseKey(raw string) (Key, error) {
	transport, id := DefaultTransport, strings.TrimSpace(raw)
	if t, rest, ok := strings.Cut(id, ":"); ok {
		transport, id = strings.ToLower(strings.TrimSpace(t)), strings.TrimSpace(rest)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || transport == "" {
		return Key{}, fmt.Errorf("invalid user id %q", raw)
	}
	return Key{Transport: transport, ID: n}, nil
}
