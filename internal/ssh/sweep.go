// internal/ssh/sweep.go

package ssh

import (
	"context"
	"time"

	"quantumxfer/internal/models"
)

// StartSweep launches the idle-session janitor. It stops when ctx is done.
func (m *Manager) StartSweep(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweepIdle()
			}
		}
	}()
}

// sweepIdle disconnects sessions inactive beyond the idle threshold. It takes
// the same per-session lane as any other operation; a session whose lane is
// busy is by definition not idle and is skipped.
func (m *Manager) sweepIdle() {
	cutoff := time.Now().UTC().Add(-m.opts.IdleThreshold)

	m.mu.RLock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		if sess.lastActivityAt().Before(cutoff) {
			candidates = append(candidates, sess)
		}
	}
	m.mu.RUnlock()

	for _, sess := range candidates {
		if !sess.opMu.TryLock() {
			continue
		}
		// Re-check under the lane: an operation may have finished between the
		// scan and the lock.
		if sess.lastActivityAt().Before(cutoff) {
			m.mu.Lock()
			delete(m.sessions, sess.id)
			m.mu.Unlock()
			sess.setState(models.StateDisconnecting)
			sess.close()
			sess.setState(models.StateClosed)
			m.logger.Info("idle session reclaimed", "session_id", sess.id)
		}
		sess.opMu.Unlock()
	}
}
