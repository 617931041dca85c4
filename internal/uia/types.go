package uia

// Bounds is an element rectangle in physical pixels.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Attributes is the property set exposed by every accessibility node.
type Attributes struct {
	Role              string            `json:"role"`
	Name              string            `json:"name,omitempty"`
	Label             string            `json:"label,omitempty"`
	Value             string            `json:"value,omitempty"`
	Description       string            `json:"description,omitempty"`
	ClassName         string            `json:"class_name,omitempty"`
	NativeID          string            `json:"native_id,omitempty"`
	Bounds            *Bounds           `json:"bounds,omitempty"`
	Enabled           bool              `json:"enabled"`
	Visible           bool              `json:"visible"`
	Focused           bool              `json:"focused,omitempty"`
	KeyboardFocusable bool              `json:"keyboard_focusable,omitempty"`
	ProcessID         int               `json:"process_id,omitempty"`
	Properties        map[string]string `json:"properties,omitempty"`
}

// BestName returns the first non-empty of name, label, native (automation) id.
// The identity hash and text extraction both key off it.
func (a Attributes) BestName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.Label != "" {
		return a.Label
	}
	return a.NativeID
}

// UINode is one node of a serialized window tree.
type UINode struct {
	Attributes Attributes `json:"attributes"`
	Children   []UINode   `json:"children,omitempty"`
}

// PropertyLoadingMode controls how much per-node detail a tree build reads.
//
// Fast reads role, name, native id, and the enabled/visible flags only.
// Complete reads the full
// attribute set including bounds and state flags. Smart reads the full set
// for interactive roles (buttons, edits, lists, links) and the fast set for
// structural roles.
type PropertyLoadingMode string

const (
	PropertyLoadingFast     PropertyLoadingMode = "fast"
	PropertyLoadingComplete PropertyLoadingMode = "complete"
	PropertyLoadingSmart    PropertyLoadingMode = "smart"
)

// TreeBuildConfig bounds a window-tree build.
type TreeBuildConfig struct {
	PropertyMode PropertyLoadingMode
	// MaxDepth of 0 means unbounded.
	MaxDepth int
}

// CommandOutput holds the result of a shell command run through the engine.
type CommandOutput struct {
	ExitStatus int    `json:"exit_status"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

// Screenshot holds raw captured pixels.
type Screenshot struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"-"`
}

// interactiveRoles drive the Smart property-loading mode. Element.Text
// uses its own list of text-bearing roles.
var interactiveRoles = map[string]bool{
	"button":    true,
	"edit":      true,
	"checkbox":  true,
	"radio":     true,
	"combobox":  true,
	"list":      true,
	"listitem":  true,
	"link":      true,
	"hyperlink": true,
	"menuitem":  true,
	"tabitem":   true,
	"slider":    true,
}

// IsInteractiveRole reports whether role gets full property loading in
// Smart mode.
func IsInteractiveRole(role string) bool {
	return interactiveRoles[normalizeRole(role)]
}
