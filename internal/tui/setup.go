package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mgomes/mdedit/internal/search"
)

// findPanel holds the two inputs of the find/replace panel. The engine owns
// the panel state; the inputs only mirror the query and replacement.
type findPanel struct {
	find    textinput.Model
	replace textinput.Model
	field   search.Field
	shown   search.PanelState
}

func newFindPanel() findPanel {
	find := textinput.New()
	find.Placeholder = "Find"
	find.Prompt = ""
	find.Width = 30

	replace := textinput.New()
	replace.Placeholder = "Replace"
	replace.Prompt = ""
	replace.Width = 30

	return findPanel{find: find, replace: replace}
}

func (p *findPanel) focus(field search.Field) {
	p.field = field
	switch field {
	case search.FieldFind:
		p.replace.Blur()
		p.find.Focus()
	case search.FieldReplace:
		p.find.Blur()
		p.replace.Focus()
	default:
		p.find.Blur()
		p.replace.Blur()
	}
}

// sync follows the engine after every change: opening the panel focuses
// the find field with the current query, closing it returns focus to the
// document.
func (p *findPanel) sync(e *search.Engine) {
	st := e.State()
	switch {
	case st == search.Hidden:
		p.focus(search.FieldNone)
	case p.shown == search.Hidden:
		p.find.SetValue(e.Query())
		p.find.CursorEnd()
		p.replace.SetValue(e.Replacement())
		p.focus(search.FieldFind)
	case st == search.Visible && p.field == search.FieldReplace:
		p.focus(search.FieldFind)
	}
	p.shown = st
}

func (p *findPanel) active() bool {
	return p.field != search.FieldNone
}

// update applies one key to the panel and reports whether it was consumed.
// Keys bound to the panel are consumed even when the engine ignores them in
// the focused field; only ctrl and alt chords it has no use for are left to
// the caller.
func (p *findPanel) update(e *search.Engine, msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.String() {
	case "esc":
		e.HandleKey(p.field, search.Key{Code: search.KeyEscape})
		return true, nil

	case "enter", "ctrl+n":
		e.HandleKey(p.field, search.Key{Code: search.KeyEnter})
		return true, nil

	case "shift+enter", "ctrl+p":
		if p.field == search.FieldFind {
			e.HandleKey(p.field, search.Key{Code: search.KeyEnter, Shift: true})
		}
		return true, nil

	case "alt+enter":
		if p.field == search.FieldReplace {
			e.HandleKey(p.field, search.Key{Code: search.KeyEnter, Ctrl: true, Shift: true})
		}
		return true, nil

	case "alt+1":
		if e.State() == search.VisibleReplace {
			e.ReplaceCurrent()
		}
		return true, nil

	case "tab", "shift+tab":
		if e.State() != search.VisibleReplace {
			return true, nil
		}
		if p.field == search.FieldFind {
			p.focus(search.FieldReplace)
		} else {
			p.focus(search.FieldFind)
		}
		return true, nil

	case "ctrl+h":
		e.ToggleReplace()
		return true, nil

	case "alt+c":
		e.ToggleOption(search.OptMatchCase)
		return true, nil
	case "alt+w":
		e.ToggleOption(search.OptWholeWord)
		return true, nil
	case "alt+r":
		e.ToggleOption(search.OptRegex)
		return true, nil
	}

	if msg.Alt || commandKeys[msg.String()] {
		return false, nil
	}

	var cmd tea.Cmd
	switch p.field {
	case search.FieldFind:
		p.find, cmd = p.find.Update(msg)
		e.SetQuery(p.find.Value())
	case search.FieldReplace:
		p.replace, cmd = p.replace.Update(msg)
		e.SetReplacement(p.replace.Value())
	default:
		return false, nil
	}
	return true, cmd
}

// commandKeys are document commands that stay available while the panel
// has focus.
var commandKeys = map[string]bool{
	"ctrl+s": true,
	"ctrl+f": true,
	"ctrl+o": true,
	"ctrl+r": true,
	"pgup":   true,
	"pgdown": true,
}

func optionLabel(label string, on bool) string {
	if on {
		return optionOn.Render(label)
	}
	return optionOff.Render(label)
}

func (p findPanel) view(e *search.Engine, width int) string {
	if e.State() == search.Hidden {
		return ""
	}
	var b strings.Builder

	opts := e.Options()
	label := "  "
	if p.field == search.FieldFind {
		label = activeStyle.Render("> ")
	}
	b.WriteString(label + p.find.View() + " ")
	b.WriteString(optionLabel("Aa", opts.MatchCase) + " ")
	b.WriteString(optionLabel("W", opts.MatchWholeWord) + " ")
	b.WriteString(optionLabel(".*", opts.UseRegex) + "  ")

	count := e.CountLabel()
	if e.Query() == "" {
		count = ""
	}
	b.WriteString(countStyle.Render(count))

	if e.State() == search.VisibleReplace {
		label = "  "
		if p.field == search.FieldReplace {
			label = activeStyle.Render("> ")
		}
		b.WriteString("\n" + label + p.replace.View())
		b.WriteString(helpStyle.Render("  alt+1 replace  alt+enter all"))
	}

	style := panelStyle
	if width > 2 {
		style = style.Width(width - 2)
	}
	return style.Render(b.String())
}

// height is the number of terminal lines the panel takes.
func (p findPanel) height(e *search.Engine) int {
	switch e.State() {
	case search.Visible:
		return 3
	case search.VisibleReplace:
		return 4
	}
	return 0
}
