package memview

import (
	"sync"
	"time"

	"github.com/adrian-cg/earthquakes/internal/domain"
)

// maxNotices bounds how many notices are kept.
const maxNotices = 20

// Notice is a message shown to the user.
type Notice struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notices keeps the latest user notices, oldest first. Safe for concurrent use.
type Notices struct {
	mu      sync.Mutex
	notices []Notice
}

// NewNotices creates an empty notice list.
func NewNotices() *Notices {
	return &Notices{}
}

// Notify records err as a user notice.
func (n *Notices) Notify(err error) {
	notice := Notice{
		Kind:    domain.ErrorKind(err),
		Message: domain.NoticeText(err),
		At:      domain.Now(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	if len(n.notices) > maxNotices {
		n.notices = n.notices[len(n.notices)-maxNotices:]
	}
}

// List returns a copy of the kept notices.
func (n *Notices) List() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.notices))
	copy(out, n.notices)
	return out
}
