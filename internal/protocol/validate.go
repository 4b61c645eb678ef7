package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingField   = errors.New("missing field")
	ErrInvalidField   = errors.New("invalid field")
	ErrWrongDirection = errors.New("wrong direction")
)

// Validate checks that m carries the fields its command requires.
func Validate(m Message) error {
	switch m.Command {
	case CmdReady, CmdResetConfig, CmdOpenFindDialog:
		return nil

	case CmdEdit, CmdSave, CmdInfo, CmdError:
		return nil

	case CmdUpdate:
		if m.Type != UpdateInit && m.Type != UpdateUpdate {
			return fieldErr(ErrInvalidField, m.Command, "type")
		}
		if m.Theme != "" && m.Theme != "dark" && m.Theme != "light" {
			return fieldErr(ErrInvalidField, m.Command, "theme")
		}
		return nil

	case CmdUpload:
		if len(m.Files) == 0 {
			return fieldErr(ErrMissingField, m.Command, "files")
		}
		for i, f := range m.Files {
			if strings.TrimSpace(f.Name) == "" {
				return fieldErr(ErrMissingField, m.Command, fmt.Sprintf("files[%d].name", i))
			}
		}
		return nil

	case CmdUploaded:
		for i, p := range m.Paths {
			if p == "" {
				return fieldErr(ErrInvalidField, m.Command, fmt.Sprintf("files[%d]", i))
			}
		}
		return nil

	case CmdOpenLink:
		if strings.TrimSpace(m.Href) == "" {
			return fieldErr(ErrMissingField, m.Command, "href")
		}
		return nil

	case CmdSaveOptions:
		if m.Options == nil {
			return fieldErr(ErrMissingField, m.Command, "options")
		}
		return nil

	case CmdConfigUpdate, CmdReloadAllCSS:
		if m.Config == nil {
			return fieldErr(ErrMissingField, m.Command, "config")
		}
		return nil

	case CmdUpdateOutlineWidth:
		if m.Width <= 0 {
			return fieldErr(ErrInvalidField, m.Command, "width")
		}
		return nil

	case CmdUpdateCSS:
		if m.CSSFile == "" {
			return fieldErr(ErrMissingField, m.Command, "cssFile")
		}
		if m.URI == "" {
			return fieldErr(ErrMissingField, m.Command, "uri")
		}
		return nil

	case CmdCSSFileDeleted:
		if m.CSSFile == "" {
			return fieldErr(ErrMissingField, m.Command, "cssFile")
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, m.Command)
	}
}

// Encode validates and serializes m.
func Encode(m Message) ([]byte, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Decode parses and validates a message received from the other endpoint.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	if err := Validate(m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Expect returns ErrWrongDirection when m is not addressed to want.
func Expect(m Message, want Direction) error {
	if got := m.Command.Direction(); got != want {
		return fmt.Errorf("%w: %s is %s", ErrWrongDirection, m.Command, got)
	}
	return nil
}

func fieldErr(kind error, cmd Command, field string) error {
	return fmt.Errorf("%w: %s.%s", kind, cmd, field)
}
