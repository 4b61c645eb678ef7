package tui

import tea "github.com/charmbracelet/bubbletea"

const loopBuffer = 64

// Loop hands timer callbacks to the program's update goroutine, so the
// editor state is only ever touched from Update.
type Loop struct {
	ch chan func()
}

func NewLoop() *Loop {
	return &Loop{ch: make(chan func(), loopBuffer)}
}

// Post queues fn. It never blocks the caller.
func (l *Loop) Post(fn func()) {
	select {
	case l.ch <- fn:
	default:
		go func() { l.ch <- fn }()
	}
}

func (l *Loop) wait() tea.Cmd {
	return func() tea.Msg {
		return LoopMsg{Fn: <-l.ch}
	}
}
