package tui

import "github.com/mgomes/mdedit/internal/protocol"

// HostMessageMsg carries one message received from the host.
type HostMessageMsg struct {
	Message protocol.Message
}

// DisconnectedMsg is delivered when the host link closes.
type DisconnectedMsg struct{}

// LoopMsg runs Fn on the program's update goroutine.
type LoopMsg struct {
	Fn func()
}

// NotifyMsg shows a host notification in the status line.
type NotifyMsg struct {
	Text  string
	Error bool
}

type TitleMsg struct {
	Title string
}

type startMsg struct{}
