// Package session holds the process-wide table of logged in users.
package session

import (
	"errors"
	"sync"
)

var ErrAlreadyClaimed = errors.New("user already logged in on another connection")

// Logins maps each logged in username to the connection that owns it.
// A username belongs to at most one connection at a time.
type Logins struct {
	mu     sync.Mutex
	owners map[string]int
	users  map[int]string
}

func NewLogins() *Logins {
	return &Logins{
		owners: make(map[string]int),
		users:  make(map[int]string),
	}
}

// Claim binds user to connID. Claiming a user already bound to connID succeeds.
func (l *Logins) Claim(user string, connID int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if owner, ok := l.owners[user]; ok {
		if owner == connID {
			return nil
		}
		return ErrAlreadyClaimed
	}
	l.owners[user] = connID
	l.users[connID] = user
	return nil
}

// Release removes the login held by connID and returns the user it belonged to.
func (l *Logins) Release(connID int) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	user, ok := l.users[connID]
	if !ok {
		return "", false
	}
	delete(l.users, connID)
	delete(l.owners, user)
	return user, true
}

func (l *Logins) Owner(user string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.owners[user]
	return id, ok
}

func (l *Logins) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.owners)
}
