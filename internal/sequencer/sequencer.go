// Package sequencer keeps list views consistent when their fetches race.
//
// Every fetch a view issues is stamped with a Token from that view's own
// Sequencer. When the fetch completes, its result is applied only if its
// token is still the latest one minted; anything older is dropped. There is
// no transport-level cancellation: superseded requests run to completion
// and their responses are discarded.
package sequencer

import "sync"

// Token identifies one issued fetch. Tokens from a single Sequencer are
// strictly increasing; the zero Token is never issued.
type Token uint64

// Sequencer is a single-writer counter owned by one view.
type Sequencer struct {
	mu     sync.Mutex
	latest Token
}

// Issue mints the next token, which becomes the latest.
func (s *Sequencer) Issue() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	return s.latest
}

// Latest returns the most recently issued token, or 0 if none.
func (s *Sequencer) Latest() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// IsLatest reports whether t is still the most recently issued token.
func (s *Sequencer) IsLatest(t Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t != 0 && t == s.latest
}

// Commit runs apply only if t is still the latest token, holding the
// sequencer lock so no newer token can be issued in between. It reports
// whether apply ran.
func (s *Sequencer) Commit(t Token, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t == 0 || t != s.latest {
		return false
	}
	apply()
	return true
}
