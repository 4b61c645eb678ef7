package editor

import "github.com/mgomes/mdedit/internal/config"

// Options configures the editing widget. Values follow JSON decoding rules:
// numbers are float64 and nested objects are maps.
type Options map[string]any

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Options:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

// Merge deep-merges each src into dst in order and returns dst. Nested
// objects merge key by key; anything else overwrites.
func Merge(dst Options, srcs ...map[string]any) Options {
	if dst == nil {
		dst = Options{}
	}
	for _, src := range srcs {
		mergeInto(dst, src)
	}
	return dst
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := asMap(v); ok {
			dv, ok := asMap(dst[k])
			if !ok {
				dv = map[string]any{}
			} else {
				dv = copyMap(dv)
			}
			mergeInto(dv, sv)
			dst[k] = dv
			continue
		}
		dst[k] = v
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := asMap(v); ok {
			v = copyMap(sub)
		}
		out[k] = v
	}
	return out
}

func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok && s != "" {
		return s
	}
	return def
}

func (o Options) Bool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}

func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

// Sub returns the nested object at key, or an empty one.
func (o Options) Sub(key string) Options {
	if m, ok := asMap(o[key]); ok {
		return Options(m)
	}
	return Options{}
}

// BuildOptions computes the widget options for an init message: toolbar and
// outline settings derived from opts, dark defaults when theme is dark, then
// opts itself merged on top.
func BuildOptions(theme string, opts map[string]any) Options {
	in := Options(opts)
	out := Options{
		"mode":  ModeIR,
		"cache": map[string]any{"enable": false},
		"toolbarConfig": map[string]any{
			"pin":  true,
			"hide": !in.Bool("showToolbar", true),
		},
		"outline": map[string]any{
			"enable":   in.Bool("showOutlineByDefault", false),
			"position": in.String("outlinePosition", config.OutlineLeft),
		},
	}
	if theme == config.ThemeDark {
		Merge(out, map[string]any{
			"theme": "dark",
			"preview": map[string]any{
				"theme": map[string]any{"current": "dark"},
			},
		})
	}
	return Merge(out, opts)
}

// MinimalOptions is the configuration used when the full one is rejected.
func MinimalOptions() Options {
	return Options{
		"mode":  ModeIR,
		"cache": map[string]any{"enable": false},
	}
}
