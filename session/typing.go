package session

import (
	"sync"
	"time"
)

// DefaultTypingIdle is how long after the last keystroke the typing
// indicator is withdrawn.
const DefaultTypingIdle = time.Second

// TypingSender emits the outbound typing signal. *ws.ConnManager
// satisfies it.
type TypingSender interface {
	SendTyping(roomID string, isTyping bool)
}

// TypingNotifier debounces raw keystroke activity for one room into at
// most one typing(true)/typing(false) pair per burst: true on the first
// keystroke after idle, false on the idle timeout or on submit. Further
// keystrokes inside the window only reset the timer.
type TypingNotifier struct {
	mu      sync.Mutex
	sender  TypingSender
	roomID  string
	idle    time.Duration
	active  bool
	stopped bool
	timer   *time.Timer
	// timerSeq invalidates a timer callback that fired while the timer
	// was being reset, so only the single live timer can emit.
	timerSeq int
}

func NewTypingNotifier(sender TypingSender, roomID string, idle time.Duration) *TypingNotifier {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &TypingNotifier{
		sender: sender,
		roomID: roomID,
		idle:   idle,
	}
}

// Keystroke records input activity. The first call of a burst emits
// typing(true); every call arms the idle timer anew.
func (n *TypingNotifier) Keystroke() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	emit := !n.active
	n.active = true
	n.resetTimerLocked()
	n.mu.Unlock()

	if emit {
		n.sender.SendTyping(n.roomID, true)
	}
}

// Submit records that the input was sent. It cancels the idle timer first
// so the cancelled timer can never emit a second, stale typing(false)
// after a new burst starts.
func (n *TypingNotifier) Submit() {
	n.mu.Lock()
	n.stopTimerLocked()
	if n.stopped || !n.active {
		n.mu.Unlock()
		return
	}
	n.active = false
	n.mu.Unlock()

	n.sender.SendTyping(n.roomID, false)
}

// Stop tears the notifier down without emitting anything. The server
// infers stale typing state from connection loss, not from a goodbye
// signal.
func (n *TypingNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
	n.active = false
	n.stopTimerLocked()
}

func (n *TypingNotifier) resetTimerLocked() {
	n.stopTimerLocked()
	n.timerSeq++
	seq := n.timerSeq
	n.timer = time.AfterFunc(n.idle, func() {
		n.idleTimeout(seq)
	})
}

func (n *TypingNotifier) stopTimerLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.timerSeq++
}

func (n *TypingNotifier) idleTimeout(seq int) {
	n.mu.Lock()
	if seq != n.timerSeq || n.stopped || !n.active {
		n.mu.Unlock()
		return
	}
	n.timer = nil
	n.active = false
	n.mu.Unlock()

	n.sender.SendTyping(n.roomID, false)
}
