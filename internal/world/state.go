package world

import (
	"sort"

	"github.com/tmwgo/server/internal/net"
)

// State indexes the characters bound to live sessions.
// Accessed only from the game loop goroutine; no locks.
type State struct {
	bySession map[uint64]*Player // SessionID → Player
	byCharID  map[int64]*Player  // CharID → Player
	aoi       *AOIGrid
}

func NewState() *State {
	return &State{
		bySession: make(map[uint64]*Player),
		byCharID:  make(map[int64]*Player),
		aoi:       NewAOIGrid(),
	}
}

// AddPlayer binds p to sess. If the character is already bound to another
// session, that binding is returned so the caller can close it; the index
// then points at the new session.
func (s *State) AddPlayer(p *Player, sess *net.Session) (displaced *Player) {
	if old, ok := s.byCharID[p.ID]; ok && old.SessionID != sess.ID {
		displaced = old
		delete(s.bySession, old.SessionID)
		s.aoi.Remove(old.SessionID)
	}
	p.SessionID = sess.ID
	p.Session = sess
	s.bySession[sess.ID] = p
	s.byCharID[p.ID] = p
	s.aoi.Add(sess.ID, p.MapID, p.X, p.Y)
	return displaced
}

// RemovePlayer unbinds whatever character the session holds.
func (s *State) RemovePlayer(sessionID uint64) *Player {
	p, ok := s.bySession[sessionID]
	if !ok {
		return nil
	}
	delete(s.bySession, sessionID)
	s.aoi.Remove(sessionID)
	// a newer session may already own this character
	if cur := s.byCharID[p.ID]; cur == p {
		delete(s.byCharID, p.ID)
	}
	return p
}

// GetBySession returns the character bound to a session.
func (s *State) GetBySession(sessionID uint64) *Player {
	return s.bySession[sessionID]
}

// GetByCharID returns the online character with that identity.
func (s *State) GetByCharID(charID int64) *Player {
	return s.byCharID[charID]
}

// Nearby returns the bound characters on p's map within hearing range of
// p, p included, in session order.
func (s *State) Nearby(p *Player) []*Player {
	ids := s.aoi.GetNearby(p.MapID, p.X, p.Y)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Player, 0, len(ids))
	for _, id := range ids {
		if other := s.bySession[id]; other != nil && p.IsAround(other) {
			out = append(out, other)
		}
	}
	return out
}

// PlayerCount returns the number of bound characters.
func (s *State) PlayerCount() int {
	return len(s.bySession)
}

// AllPlayers iterates bound characters in session order.
func (s *State) AllPlayers(fn func(*Player)) {
	ids := make([]uint64, 0, len(s.bySession))
	for id := range s.bySession {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(s.bySession[id])
	}
}
