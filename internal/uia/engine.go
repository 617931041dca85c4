package uia

import (
	"context"
	"strings"
	"time"
)

// Node is the platform-side accessibility node contract. One implementation
// exists per OS backend; the in-memory implementation in uiatest backs
// simulated runs and tests.
//
// Implementations must be comparable (pointer receivers) — the locator keys
// its per-resolution attribute cache on Node values — and thread-safe for
// reads. Action methods may block on synchronous platform APIs.
type Node interface {
	// Attributes reads the node's current property set. Expensive on real
	// backends; callers cache within a resolution pass.
	Attributes() Attributes
	Children() ([]Node, error)
	Parent() (Node, error)
	// Equals reports whether both handles refer to the same underlying node.
	Equals(other Node) bool

	Click() error
	DoubleClick() error
	RightClick() error
	Hover() error
	Focus() error
	TypeText(text string, useClipboard bool) error
	PressKey(chord string) error
	SetValue(value string) error
	Scroll(direction string, amount float64) error
	Invoke() error
	SelectOption(option string) error
	ListOptions() ([]string, error)
	IsToggled() (bool, error)
	SetToggled(state bool) error
	ActivateWindow() error
	Minimize() error
	Maximize() error
	Close() error
	Capture() (*Screenshot, error)
	ExecuteBrowserScript(ctx context.Context, script string) (string, error)
}

// Engine is the platform-abstract accessibility backend consumed by the
// locator, the recorder, and the tool registry. Read operations must be
// thread-safe; open/write operations may serialize internally.
type Engine interface {
	Root() *Element
	Focused() (*Element, error)
	Applications() ([]*Element, error)
	ApplicationByName(name string) (*Element, error)
	ApplicationByPID(ctx context.Context, pid int, timeout time.Duration) (*Element, error)
	OpenApplication(spec string) (*Element, error)
	ActivateApplication(name string) error
	OpenURL(url, browser string) (*Element, error)
	OpenFile(path string) error
	RunCommand(ctx context.Context, windowsCmd, unixCmd string) (*CommandOutput, error)
	CaptureScreen(ctx context.Context) (*Screenshot, error)
	FindWindowByCriteria(ctx context.Context, titleContains string, timeout time.Duration) (*Element, error)
	CurrentWindow(ctx context.Context) (*Element, error)
	CurrentApplication(ctx context.Context) (*Element, error)
	WindowTree(pid int, title string, cfg *TreeBuildConfig) (*UINode, error)
	WindowTreeByTitle(title string) (*UINode, error)
	// ProcessNameByPID resolves a process image name. Callers go through
	// ProcessName, which fronts this with a 2-second TTL cache.
	ProcessNameByPID(pid int) (string, error)
}

func normalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	role = strings.ReplaceAll(role, " ", "")
	role = strings.ReplaceAll(role, "_", "")
	return role
}

// roleSynonyms maps platform role spellings onto the canonical forms the
// selector language uses.
var roleSynonyms = map[string]string{
	"textbox":   "edit",
	"textfield": "edit",
	"input":     "edit",
	"checkbox":  "checkbox",
	"check":     "checkbox",
	"hyperlink": "link",
	"app":       "application",
	"frame":     "window",
}

// RolesMatch compares two role strings case-insensitively, honouring
// synonyms in either direction.
func RolesMatch(a, b string) bool {
	na, nb := normalizeRole(a), normalizeRole(b)
	if na == nb {
		return true
	}
	if s, ok := roleSynonyms[na]; ok && s == nb {
		return true
	}
	if s, ok := roleSynonyms[nb]; ok && s == na {
		return true
	}
	return false
}
