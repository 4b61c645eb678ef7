package search

// Field identifies which panel input has focus.
type Field int

const (
	FieldNone Field = iota
	FieldFind
	FieldReplace
)

const (
	KeyEnter  = "enter"
	KeyEscape = "esc"
)

// Key is a key press with its modifiers. Meta covers Cmd on macOS.
type Key struct {
	Code  string
	Shift bool
	Ctrl  bool
	Meta  bool
}

// HandleKey applies the panel keyboard contract and reports whether the key
// was consumed. Nothing is consumed while the panel is hidden.
func (e *Engine) HandleKey(field Field, k Key) bool {
	if e.state == Hidden {
		return false
	}

	switch k.Code {
	case KeyEscape:
		e.Hide()
		return true
	case KeyEnter:
		if field == FieldReplace {
			if (k.Ctrl || k.Meta) && k.Shift {
				e.ReplaceAll()
				return true
			}
			return false
		}
		if e.input.Cancel() {
			// The query changed since the last search; land on the first match.
			e.PerformFind()
			return true
		}
		if k.Shift {
			e.FindPrevious()
		} else {
			e.FindNext()
		}
		return true
	}
	return false
}
