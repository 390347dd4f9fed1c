// Package theme keeps the active theme and the custom theme definitions in the
// channel store, and propagates selections over the theme:changed topic.
package theme

import (
	"errors"
	"fmt"
	"maps"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Storage keys shared with panels.
const (
	KeySelectedID          = "theme.selectedId"
	KeyCustomDefinitions   = "theme.customDefinitions"
	KeyDownloadedFilenames = "theme.downloadedFilenames"
)

// DefaultID is the built-in fallback theme.
const DefaultID = "light"

var (
	ErrUnknownTheme      = errors.New("unknown theme")
	ErrReservedID        = errors.New("theme id is reserved by a built-in theme")
	ErrInvalidDefinition = errors.New("invalid theme definition")
)

// Palette holds the theme colours as #rrggbb strings.
type Palette struct {
	Mode       string `json:"mode"`
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
	Surface    string `json:"surface"`
	Text       string `json:"text"`
	Error      string `json:"error,omitempty"`
}

// Shape holds the geometry overrides.
type Shape struct {
	BorderRadius int `json:"borderRadius"`
}

// Definition is a self-contained theme. It is the payload of theme:changed.
type Definition struct {
	ID         string                       `json:"id"`
	Name       string                       `json:"name"`
	Palette    Palette                      `json:"palette"`
	Shape      Shape                        `json:"shape"`
	Components map[string]map[string]string `json:"components,omitempty"`
}

// Clone returns a deep copy of d.
func (d Definition) Clone() Definition {
	out := d
	if d.Components != nil {
		out.Components = make(map[string]map[string]string, len(d.Components))
		for k, v := range d.Components {
			out.Components[k] = maps.Clone(v)
		}
	}
	return out
}

var builtins = []Definition{
	{
		ID:   "light",
		Name: "Light",
		Palette: Palette{
			Mode:       "light",
			Primary:    "#1976d2",
			Secondary:  "#9c27b0",
			Background: "#fafafa",
			Surface:    "#ffffff",
			Text:       "#212121",
			Error:      "#d32f2f",
		},
		Shape: Shape{BorderRadius: 4},
	},
	{
		ID:   "dark",
		Name: "Dark",
		Palette: Palette{
			Mode:       "dark",
			Primary:    "#90caf9",
			Secondary:  "#ce93d8",
			Background: "#121212",
			Surface:    "#1e1e1e",
			Text:       "#ffffff",
			Error:      "#f44336",
		},
		Shape: Shape{BorderRadius: 4},
	},
}

// Builtins returns the built-in definitions.
func Builtins() []Definition {
	out := make([]Definition, len(builtins))
	for i, d := range builtins {
		out[i] = d.Clone()
	}
	return out
}

// Builtin returns the built-in definition with id.
func Builtin(id string) (Definition, bool) {
	for _, d := range builtins {
		if d.ID == id {
			return d.Clone(), true
		}
	}
	return Definition{}, false
}

// IsBuiltin reports whether id names a built-in theme.
func IsBuiltin(id string) bool {
	_, ok := Builtin(id)
	return ok
}

// Normalize rewrites every colour as lowercase #rrggbb and derives a readable
// text colour when none is set.
func Normalize(d Definition) (Definition, error) {
	d = d.Clone()
	colors := []*string{
		&d.Palette.Primary,
		&d.Palette.Secondary,
		&d.Palette.Background,
		&d.Palette.Surface,
		&d.Palette.Text,
		&d.Palette.Error,
	}
	for _, c := range colors {
		if *c == "" {
			continue
		}
		parsed, err := colorful.Hex(*c)
		if err != nil {
			return Definition{}, fmt.Errorf("%w: colour %q: %v", ErrInvalidDefinition, *c, err)
		}
		*c = parsed.Clamped().Hex()
	}

	if d.Palette.Text == "" && d.Palette.Background != "" {
		bg, _ := colorful.Hex(d.Palette.Background)
		d.Palette.Text = ContrastText(bg)
	}
	if d.Palette.Mode == "" {
		d.Palette.Mode = "light"
		if bg, err := colorful.Hex(d.Palette.Background); err == nil {
			if l, _, _ := bg.Lab(); l < 0.5 {
				d.Palette.Mode = "dark"
			}
		}
	}
	return d, nil
}

// ContrastText picks near-black or white text for a background.
func ContrastText(bg colorful.Color) string {
	if l, _, _ := bg.Lab(); l > 0.6 {
		return "#212121"
	}
	return "#ffffff"
}
