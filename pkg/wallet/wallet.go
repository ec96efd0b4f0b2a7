// Package wallet holds the session-scoped wallet boundary: which account is
// active, whether the user explicitly connected, and change notifications for
// surfaces that re-derive on account switches.
package wallet

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Session is the connection state for one user session. The connected flag is
// the only persisted session fact: connect sets it, disconnect clears it, and
// nothing else survives a restart.
type Session struct {
	mu        sync.Mutex
	account   string
	connected bool
	subs      map[int]chan string
	nextSub   int
}

func NewSession() *Session {
	return &Session{subs: make(map[int]chan string)}
}

// Connect marks the session connected with the given account.
func (s *Session) Connect(account string) {
	s.mu.Lock()
	s.account = account
	s.connected = true
	s.mu.Unlock()
	s.notify(account)
}

// SwitchAccount records the wallet's account-change event. A switch on a
// disconnected session is ignored.
func (s *Session) SwitchAccount(account string) {
	s.mu.Lock()
	if !s.connected || s.account == account {
		s.mu.Unlock()
		return
	}
	s.account = account
	s.mu.Unlock()
	s.notify(account)
}

// Disconnect clears the session. Subscribers see an empty account.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.account = ""
	s.connected = false
	s.mu.Unlock()
	s.notify("")
}

// Account returns the active account and whether the session is connected.
func (s *Session) Account() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, s.connected
}

// AccountChanges subscribes to account switches. The returned cancel func
// must be called exactly once; the channel is closed by it. Signals coalesce:
// a subscriber that has not drained the previous value misses intermediates
// but always ends on the latest.
func (s *Session) AccountChanges() (<-chan string, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan string, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

func (s *Session) notify(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- account:
		default:
			// Drop the stale pending value, keep the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- account:
			default:
			}
		}
	}
}

// FormatAddress shortens an address for display: first six characters, last
// four. Addresses too short to shorten pass through unchanged.
func FormatAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// ReadKeyFile loads a hex-encoded signing key from disk for the headless
// services. Browser sessions never touch this path; their keys stay in the
// extension.
func ReadKeyFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read key file: %w", err)
	}
	key := strings.TrimSpace(string(b))
	hexPart := strings.TrimPrefix(key, "0x")
	if len(hexPart) != 64 {
		return "", fmt.Errorf("key file %s: expected 32-byte hex key, got %d chars", path, len(hexPart))
	}
	for _, c := range hexPart {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return "", fmt.Errorf("key file %s: not hex encoded", path)
		}
	}
	return key, nil
}
