// Package protocol defines the messages exchanged between the host process
// and the webview. Every message is a JSON object discriminated by its
// "command" field.
package protocol

import (
	"encoding/json"
	"fmt"
)

type Command string

const (
	CmdReady              Command = "ready"
	CmdUpdate             Command = "update"
	CmdEdit               Command = "edit"
	CmdSave               Command = "save"
	CmdUpload             Command = "upload"
	CmdUploaded           Command = "uploaded"
	CmdOpenLink           Command = "open-link"
	CmdInfo               Command = "info"
	CmdError              Command = "error"
	CmdSaveOptions        Command = "save-options"
	CmdResetConfig        Command = "reset-config"
	CmdConfigUpdate       Command = "config-update"
	CmdUpdateOutlineWidth Command = "update-outline-width"
	CmdUpdateCSS          Command = "update-css"
	CmdReloadAllCSS       Command = "reload-all-css"
	CmdCSSFileDeleted     Command = "css-file-deleted"
	CmdOpenFindDialog     Command = "open-find-dialog"
)

type Direction int

const (
	ToHost Direction = iota + 1
	ToWebview
)

func (d Direction) String() string {
	switch d {
	case ToHost:
		return "webview->host"
	case ToWebview:
		return "host->webview"
	default:
		return "unknown"
	}
}

var directions = map[Command]Direction{
	CmdReady:              ToHost,
	CmdEdit:               ToHost,
	CmdSave:               ToHost,
	CmdUpload:             ToHost,
	CmdOpenLink:           ToHost,
	CmdInfo:               ToHost,
	CmdError:              ToHost,
	CmdSaveOptions:        ToHost,
	CmdResetConfig:        ToHost,
	CmdUpdateOutlineWidth: ToHost,
	CmdUpdate:             ToWebview,
	CmdUploaded:           ToWebview,
	CmdConfigUpdate:       ToWebview,
	CmdUpdateCSS:          ToWebview,
	CmdReloadAllCSS:       ToWebview,
	CmdCSSFileDeleted:     ToWebview,
	CmdOpenFindDialog:     ToWebview,
}

// Direction reports which endpoint receives the command. Unknown commands
// return 0.
func (c Command) Direction() Direction {
	return directions[c]
}

type UpdateType string

const (
	UpdateInit   UpdateType = "init"
	UpdateUpdate UpdateType = "update"
)

type UploadFile struct {
	Base64 string `json:"base64"`
	Name   string `json:"name"`
}

// ConfigPayload carries either a partial UI config (config-update) or the
// CSS settings (reload-all-css). Absent fields are left untouched by the
// receiver.
type ConfigPayload struct {
	ShowOutlineByDefault *bool   `json:"showOutlineByDefault,omitempty"`
	OutlinePosition      *string `json:"outlinePosition,omitempty"`
	OutlineWidth         *int    `json:"outlineWidth,omitempty"`
	UseThemeColor        *bool   `json:"useVscodeThemeColor,omitempty"`
	ShowToolbar          *bool   `json:"showToolbar,omitempty"`

	ExternalCSSFiles []string `json:"externalCssFiles,omitempty"`
	CustomCSS        string   `json:"customCss,omitempty"`
	CSSLoadOrder     string   `json:"cssLoadOrder,omitempty"`
}

// Message is the tagged union of every protocol message. Only the fields
// relevant to Command are populated.
type Message struct {
	Command Command

	Type    UpdateType
	Content string
	Theme   string
	Options map[string]any

	// Files is set on upload; Paths on uploaded. Both travel under the
	// "files" key.
	Files []UploadFile
	Paths []string

	Href  string
	Width int

	Config *ConfigPayload

	CSSFile   string
	FullPath  string
	URI       string
	Timestamp int64

	ShowReplace bool
}

type wireMessage struct {
	Command     Command         `json:"command"`
	Type        UpdateType      `json:"type,omitempty"`
	Content     string          `json:"content,omitempty"`
	Theme       string          `json:"theme,omitempty"`
	Options     map[string]any  `json:"options,omitempty"`
	Files       json.RawMessage `json:"files,omitempty"`
	Href        string          `json:"href,omitempty"`
	Width       int             `json:"width,omitempty"`
	Config      *ConfigPayload  `json:"config,omitempty"`
	CSSFile     string          `json:"cssFile,omitempty"`
	FullPath    string          `json:"fullPath,omitempty"`
	URI         string          `json:"uri,omitempty"`
	Timestamp   int64           `json:"timestamp,omitempty"`
	ShowReplace bool            `json:"showReplace,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Command:     m.Command,
		Type:        m.Type,
		Content:     m.Content,
		Theme:       m.Theme,
		Options:     m.Options,
		Href:        m.Href,
		Width:       m.Width,
		Config:      m.Config,
		CSSFile:     m.CSSFile,
		FullPath:    m.FullPath,
		URI:         m.URI,
		Timestamp:   m.Timestamp,
		ShowReplace: m.ShowReplace,
	}

	var (
		files []byte
		err   error
	)
	switch {
	case m.Command == CmdUploaded:
		files, err = json.Marshal(nonNil(m.Paths))
	case m.Files != nil:
		files, err = json.Marshal(m.Files)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode files: %w", err)
	}
	w.Files = files

	return json.Marshal(w)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*m = Message{
		Command:     w.Command,
		Type:        w.Type,
		Content:     w.Content,
		Theme:       w.Theme,
		Options:     w.Options,
		Href:        w.Href,
		Width:       w.Width,
		Config:      w.Config,
		CSSFile:     w.CSSFile,
		FullPath:    w.FullPath,
		URI:         w.URI,
		Timestamp:   w.Timestamp,
		ShowReplace: w.ShowReplace,
	}

	if len(w.Files) == 0 || string(w.Files) == "null" {
		return nil
	}
	if w.Command == CmdUploaded {
		if err := json.Unmarshal(w.Files, &m.Paths); err != nil {
			return fmt.Errorf("failed to decode uploaded paths: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(w.Files, &m.Files); err != nil {
		return fmt.Errorf("failed to decode upload files: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func Ready() Message {
	return Message{Command: CmdReady}
}

func Init(content, theme string, options map[string]any) Message {
	return Message{Command: CmdUpdate, Type: UpdateInit, Content: content, Theme: theme, Options: options}
}

func Update(content, theme string) Message {
	return Message{Command: CmdUpdate, Type: UpdateUpdate, Content: content, Theme: theme}
}

func Edit(content string) Message {
	return Message{Command: CmdEdit, Content: content}
}

func Save(content string) Message {
	return Message{Command: CmdSave, Content: content}
}

func Upload(files []UploadFile) Message {
	return Message{Command: CmdUpload, Files: files}
}

func Uploaded(paths []string) Message {
	return Message{Command: CmdUploaded, Paths: paths}
}

func OpenLink(href string) Message {
	return Message{Command: CmdOpenLink, Href: href}
}

func Info(content string) Message {
	return Message{Command: CmdInfo, Content: content}
}

func Error(content string) Message {
	return Message{Command: CmdError, Content: content}
}

func SaveOptions(options map[string]any) Message {
	return Message{Command: CmdSaveOptions, Options: options}
}

func ResetConfig() Message {
	return Message{Command: CmdResetConfig}
}

func ConfigUpdate(cfg ConfigPayload) Message {
	return Message{Command: CmdConfigUpdate, Config: &cfg}
}

func UpdateOutlineWidth(width int) Message {
	return Message{Command: CmdUpdateOutlineWidth, Width: width}
}

func UpdateCSS(cssFile, fullPath, uri string, timestamp int64) Message {
	return Message{Command: CmdUpdateCSS, CSSFile: cssFile, FullPath: fullPath, URI: uri, Timestamp: timestamp}
}

func ReloadAllCSS(cfg ConfigPayload) Message {
	return Message{Command: CmdReloadAllCSS, Config: &cfg}
}

func CSSFileDeleted(cssFile string) Message {
	return Message{Command: CmdCSSFileDeleted, CSSFile: cssFile}
}

func OpenFindDialog(showReplace bool) Message {
	return Message{Command: CmdOpenFindDialog, ShowReplace: showReplace}
}
