// Package bridge correlates asynchronous conversion callbacks with the browser
// sessions that submitted the jobs, and relays the outcome over each session's
// notification socket.
//
// Correlation always flows JobRegistry -> ConnectionRegistry, never the reverse,
// so the two registries are locked independently and never together.
package bridge

import "github.com/dontdude/goconv/internal/domain"

// Bridge bundles the registries, the dispatcher and the per-socket settings.
type Bridge struct {
	Jobs       *JobRegistry
	Conns      *ConnectionRegistry
	Dispatcher *NotificationDispatcher

	session SessionConfig
}

// New builds a bridge around the artifact collaborators.
func New(fetcher domain.ArtifactFetcher, store domain.ArtifactStore, session SessionConfig) *Bridge {
	jobs := NewJobRegistry()
	conns := NewConnectionRegistry()
	return &Bridge{
		Jobs:       jobs,
		Conns:      conns,
		Dispatcher: NewNotificationDispatcher(jobs, conns, fetcher, store),
		session:    session,
	}
}

// Serve runs a SocketSession on conn and returns when it closes.
func (b *Bridge) Serve(conn Conn) {
	NewSocketSession(conn, b.Conns, b.session).Run()
}
