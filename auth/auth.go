// Package auth gates access to the bot behind a shared access code.
package auth

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrNoCode reports that no access code is configured on the server. It is a
// distinct condition from a wrong code so the front end can tell the user to
// contact the operator instead of retrying.
var ErrNoCode = errors.New("access code is not configured")

// Gate keeps the set of users that have presented the access code.
// Membership is monotonic for the process lifetime; there is no revoke.
type Gate struct {
	code string

	mu    sync.RWMutex
	users map[int64]struct{}
}

func NewGate(code string) *Gate {
	return &Gate{
		code:  code,
		users: make(map[int64]struct{}),
	}
}

// IsAuthorized reports whether usr has presented the access code.
func (g *Gate) IsAuthorized(usr int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.users[usr]
	return ok
}

// Authorize checks the supplied code and, on match, admits usr. It returns
// ErrNoCode when no code is configured; the attempt fails closed either way.
func (g *Gate) Authorize(usr int64, code string) (bool, error) {
	if g.code == "" {
		return false, ErrNoCode
	}

	if code != g.code {
		return false, nil
	}

	g.mu.Lock()
	g.users[usr] = struct{}{}
	g.mu.Unlock()

	return true, nil
}
