package session

import "sync"

// Manager keeps the submission each reviewer is currently discussing.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]int64
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]int64),
	}
}

// Open points reviewerID at submissionID, replacing any previous target.
func (m *Manager) Open(reviewerID, submissionID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[reviewerID] = submissionID
}

func (m *Manager) Active(reviewerID int64) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.sessions[reviewerID]
	return id, ok
}

// Clear drops the reviewer's session only if it still points at submissionID.
func (m *Manager) Clear(reviewerID, submissionID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[reviewerID] == submissionID {
		delete(m.sessions, reviewerID)
	}
}

// ClearAllFor removes every session pointing at submissionID and
// returns how many were dropped.
func (m *Manager) ClearAllFor(submissionID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for reviewer, target := range m.sessions {
		if target == submissionID {
			delete(m.sessions, reviewer)
			n++
		}
	}
	return n
}
