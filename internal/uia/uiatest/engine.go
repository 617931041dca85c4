// Package uiatest provides an in-memory accessibility engine backing unit
// tests and the CLI's simulated mode. Trees are built with N and mutated by
// the same action surface real backends expose, so locator, recorder, and
// executor behaviour can be exercised without a desktop session.
package uiatest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// Node is one in-memory accessibility node.
type Node struct {
	mu       sync.Mutex
	attrs    uia.Attributes
	children []*Node
	parent   *Node
	removed  bool

	// Interaction counters inspected by tests.
	Clicks       int
	DoubleClicks int
	RightClicks  int
	Invocations  int
	TypedText    []string
	PressedKeys  []string
	Scrolls      []string
	options      []string
	selected     string
	toggled      bool

	eng *Engine
}

// N builds a node with the given role, name, and children.
func N(role, name string, children ...*Node) *Node {
	n := &Node{attrs: uia.Attributes{
		Role:    role,
		Name:    name,
		Enabled: true,
		Visible: true,
	}}
	for _, c := range children {
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

func (n *Node) WithClass(class string) *Node    { n.attrs.ClassName = class; return n }
func (n *Node) WithNativeID(id string) *Node    { n.attrs.NativeID = id; return n }
func (n *Node) WithValue(v string) *Node        { n.attrs.Value = v; return n }
func (n *Node) WithLabel(l string) *Node        { n.attrs.Label = l; return n }
func (n *Node) WithPID(pid int) *Node           { n.attrs.ProcessID = pid; return n }
func (n *Node) WithVisible(v bool) *Node        { n.attrs.Visible = v; return n }
func (n *Node) WithFocusable() *Node            { n.attrs.KeyboardFocusable = true; return n }
func (n *Node) WithOptions(opts ...string) *Node { n.options = opts; return n }

func (n *Node) WithBounds(x, y, w, h float64) *Node {
	n.attrs.Bounds = &uia.Bounds{X: x, Y: y, Width: w, Height: h}
	return n
}

func (n *Node) WithProp(k, v string) *Node {
	if n.attrs.Properties == nil {
		n.attrs.Properties = map[string]string{}
	}
	n.attrs.Properties[k] = v
	return n
}

// SetName mutates the node name, simulating a title/property change.
func (n *Node) SetName(name string) {
	n.mu.Lock()
	n.attrs.Name = name
	n.mu.Unlock()
}

// SetValueDirect mutates the value without going through the action surface.
func (n *Node) SetValueDirect(v string) {
	n.mu.Lock()
	n.attrs.Value = v
	n.mu.Unlock()
}

// Remove detaches the node, making subsequent actions fail like a vanished
// platform node.
func (n *Node) Remove() {
	n.mu.Lock()
	n.removed = true
	n.mu.Unlock()
	if n.parent != nil {
		n.parent.mu.Lock()
		kids := n.parent.children[:0]
		for _, k := range n.parent.children {
			if k != n {
				kids = append(kids, k)
			}
		}
		n.parent.children = kids
		n.parent.mu.Unlock()
	}
}

// AddChild appends a child at runtime, simulating late-loading UI.
func (n *Node) AddChild(c *Node) {
	n.mu.Lock()
	c.parent = n
	if c.attrs.ProcessID == 0 {
		c.attrs.ProcessID = n.attrs.ProcessID
	}
	n.children = append(n.children, c)
	n.mu.Unlock()
	if n.eng != nil {
		n.eng.adopt(c)
	} else {
		c.eng = n.eng
	}
}

func (n *Node) gone() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.removed {
		return uia.ErrPlatform("element no longer exists")
	}
	return nil
}

func (n *Node) Attributes() uia.Attributes {
	n.mu.Lock()
	defer n.mu.Unlock()
	a := n.attrs
	if n.eng != nil {
		a.Focused = n.eng.focusedNode() == n
	}
	return a
}

func (n *Node) Children() ([]uia.Node, error) {
	if err := n.gone(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]uia.Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	return out, nil
}

func (n *Node) Parent() (uia.Node, error) {
	if n.parent == nil {
		return nil, nil
	}
	return n.parent, nil
}

func (n *Node) Equals(other uia.Node) bool {
	o, ok := other.(*Node)
	return ok && o == n
}

func (n *Node) Click() error {
	if err := n.gone(); err != nil {
		return err
	}
	n.mu.Lock()
	n.Clicks++
	n.mu.Unlock()
	if n.eng != nil {
		n.eng.SetFocus(n)
	}
	return nil
}

func (n *Node) DoubleClick() error {
	if err := n.gone(); err != nil {
		return err
	}
	n.mu.Lock()
	n.DoubleClicks++
	n.mu.Unlock()
	return nil
}

func (n *Node) RightClick() error {
	if err := n.gone(); err != nil {
		return err
	}
	n.mu.Lock()
	n.RightClicks++
	n.mu.Unlock()
	return nil
}

func (n *Node) Hover() error { return n.gone() }

func (n *Node) Focus() error {
	if err := n.gone(); err != nil {
		return err
	}
	if n.eng != nil {
		n.eng.SetFocus(n)
	}
	return nil
}

func (n *Node) TypeText(text string, useClipboard bool) error {
	if err := n.gone(); err != nil {
		return err
	}
	if !uia.RolesMatch(n.attrs.Role, "edit") && !uia.RolesMatch(n.attrs.Role, "document") {
		return uia.ErrPlatform("type_text unsupported for role %s", n.attrs.Role)
	}
	n.mu.Lock()
	n.TypedText = append(n.TypedText, text)
	n.attrs.Value += text
	n.mu.Unlock()
	return nil
}

func (n *Node) PressKey(chord string) error {
	if err := n.gone(); err != nil {
		return err
	}
	n.mu.Lock()
	n.PressedKeys = append(n.PressedKeys, chord)
	n.mu.Unlock()
	return nil
}

func (n *Node) SetValue(value string) error {
	if err := n.gone(); err != nil {
		return err
	}
	n.mu.Lock()
	n.attrs.Value = value
	n.mu.Unlock()
	return nil
}

func (n *Node) Scroll(direction string, amount float64) error {
	if err := n.gone(); err != nil {
		return err
	}
	n.mu.Lock()
	n.Scrolls = append(n.Scrolls, fmt.Sprintf("%s:%g", direction, amount))
	n.mu.Unlock()
	return nil
}

func (n *Node) Invoke() error {
	if err := n.gone(); err != nil {
		return err
	}
	n.mu.Lock()
	n.Invocations++
	n.mu.Unlock()
	return nil
}

func (n *Node) SelectOption(option string) error {
	if err := n.gone(); err != nil {
		return err
	}
	for _, o := range n.options {
		if strings.EqualFold(o, option) {
			n.mu.Lock()
			n.selected = o
			n.attrs.Value = o
			n.mu.Unlock()
			return nil
		}
	}
	return uia.ErrPlatform("option %q not present", option)
}

func (n *Node) ListOptions() ([]string, error) {
	if err := n.gone(); err != nil {
		return nil, err
	}
	return append([]string{}, n.options...), nil
}

func (n *Node) IsToggled() (bool, error) {
	if err := n.gone(); err != nil {
		return false, err
	}
	if !uia.RolesMatch(n.attrs.Role, "checkbox") && !uia.RolesMatch(n.attrs.Role, "radio") {
		return false, uia.ErrPlatform("is_toggled unsupported for role %s", n.attrs.Role)
	}
	return n.toggled, nil
}

func (n *Node) SetToggled(state bool) error {
	if _, err := n.IsToggled(); err != nil {
		return err
	}
	n.mu.Lock()
	n.toggled = state
	n.mu.Unlock()
	return nil
}

func (n *Node) ActivateWindow() error { return n.gone() }
func (n *Node) Minimize() error       { return n.gone() }
func (n *Node) Maximize() error       { return n.gone() }

func (n *Node) Close() error {
	if err := n.gone(); err != nil {
		return err
	}
	n.Remove()
	return nil
}

func (n *Node) Capture() (*uia.Screenshot, error) {
	if err := n.gone(); err != nil {
		return nil, err
	}
	return &uia.Screenshot{Width: 1, Height: 1, Data: []byte{0}}, nil
}

func (n *Node) ExecuteBrowserScript(ctx context.Context, script string) (string, error) {
	if err := n.gone(); err != nil {
		return "", err
	}
	return "", uia.ErrPlatform("no browser attached to simulated node")
}

// Engine is the in-memory uia.Engine implementation.
type Engine struct {
	mu           sync.Mutex
	root         *Node
	focused      *Node
	processNames map[int]string

	OpenedApps  []string
	OpenedURLs  []string
	OpenedFiles []string

	// PIDLookups counts ProcessNameByPID calls, exposing cache behaviour.
	PIDLookups int
}

// NewEngine wires the tree under a synthetic desktop root.
func NewEngine(windows ...*Node) *Engine {
	root := N("Desktop", "Desktop")
	for _, w := range windows {
		w.parent = root
		root.children = append(root.children, w)
	}
	e := &Engine{root: root, processNames: map[int]string{}}
	e.adopt(root)
	return e
}

func (e *Engine) adopt(n *Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adoptLocked(n)
}

func (e *Engine) adoptLocked(n *Node) {
	n.eng = e
	if pid := n.attrs.ProcessID; pid != 0 && e.processNames[pid] == "" {
		e.processNames[pid] = fmt.Sprintf("process-%d.exe", pid)
	}
	for _, c := range n.children {
		// Children belong to their window's process unless set explicitly.
		if c.attrs.ProcessID == 0 {
			c.attrs.ProcessID = n.attrs.ProcessID
		}
		e.adoptLocked(c)
	}
}

// SetProcessName registers the image name returned for pid lookups.
func (e *Engine) SetProcessName(pid int, name string) {
	e.mu.Lock()
	e.processNames[pid] = name
	e.mu.Unlock()
}

// SetFocus moves simulated keyboard focus.
func (e *Engine) SetFocus(n *Node) {
	e.mu.Lock()
	e.focused = n
	e.mu.Unlock()
}

func (e *Engine) focusedNode() *Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focused
}

// RootNode exposes the raw root for tree surgery in tests.
func (e *Engine) RootNode() *Node { return e.root }

func (e *Engine) Root() *uia.Element { return uia.NewElement(e, e.root) }

func (e *Engine) Focused() (*uia.Element, error) {
	n := e.focusedNode()
	if n == nil {
		return nil, uia.ErrElementNotFound("no focused element")
	}
	return uia.NewElement(e, n), nil
}

func (e *Engine) Applications() ([]*uia.Element, error) {
	var out []*uia.Element
	for _, c := range e.root.children {
		if uia.RolesMatch(c.attrs.Role, "window") || uia.RolesMatch(c.attrs.Role, "application") {
			out = append(out, uia.NewElement(e, c))
		}
	}
	return out, nil
}

func (e *Engine) ApplicationByName(name string) (*uia.Element, error) {
	apps, _ := e.Applications()
	for _, a := range apps {
		if strings.EqualFold(a.Name(), name) {
			return a, nil
		}
	}
	return nil, uia.ErrElementNotFound("application %q", name)
}

func (e *Engine) ApplicationByPID(ctx context.Context, pid int, timeout time.Duration) (*uia.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		for _, c := range e.root.children {
			if c.attrs.ProcessID == pid {
				return uia.NewElement(e, c), nil
			}
		}
		if timeout <= 0 || time.Now().After(deadline) || ctx.Err() != nil {
			return nil, uia.ErrElementNotFound("application pid %d", pid)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (e *Engine) OpenApplication(spec string) (*uia.Element, error) {
	e.mu.Lock()
	e.OpenedApps = append(e.OpenedApps, spec)
	pid := 1000 + len(e.OpenedApps)
	e.mu.Unlock()
	win := N("Window", spec).WithPID(pid)
	e.SetProcessName(pid, strings.ToLower(spec)+".exe")
	win.parent = e.root
	win.eng = e
	e.root.mu.Lock()
	e.root.children = append(e.root.children, win)
	e.root.mu.Unlock()
	return uia.NewElement(e, win), nil
}

func (e *Engine) ActivateApplication(name string) error {
	_, err := e.ApplicationByName(name)
	return err
}

func (e *Engine) OpenURL(url, browser string) (*uia.Element, error) {
	e.mu.Lock()
	e.OpenedURLs = append(e.OpenedURLs, url)
	e.mu.Unlock()
	if browser == "" {
		browser = "chrome"
	}
	el, err := e.ApplicationByName(browser)
	if err != nil {
		return e.OpenApplication(browser)
	}
	return el, nil
}

func (e *Engine) OpenFile(path string) error {
	e.mu.Lock()
	e.OpenedFiles = append(e.OpenedFiles, path)
	e.mu.Unlock()
	return nil
}

func (e *Engine) RunCommand(ctx context.Context, windowsCmd, unixCmd string) (*uia.CommandOutput, error) {
	cmdLine := unixCmd
	if cmdLine == "" {
		cmdLine = windowsCmd
	}
	if strings.TrimSpace(cmdLine) == "" {
		return nil, uia.ErrInvalidArgument("no command for this platform")
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdLine)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	out := &uia.CommandOutput{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			out.ExitStatus = ee.ExitCode()
			return out, nil
		}
		return nil, uia.ErrPlatform("run_command: %v", err)
	}
	return out, nil
}

func (e *Engine) CaptureScreen(ctx context.Context) (*uia.Screenshot, error) {
	return &uia.Screenshot{Width: 1, Height: 1, Data: []byte{0}}, nil
}

func (e *Engine) FindWindowByCriteria(ctx context.Context, titleContains string, timeout time.Duration) (*uia.Element, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		for _, c := range e.root.children {
			if titleContains == "" || strings.Contains(strings.ToLower(c.Attributes().Name), strings.ToLower(titleContains)) {
				return uia.NewElement(e, c), nil
			}
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return nil, uia.ErrElementNotFound("window title containing %q", titleContains)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (e *Engine) CurrentWindow(ctx context.Context) (*uia.Element, error) {
	n := e.focusedNode()
	for n != nil && !uia.RolesMatch(n.attrs.Role, "window") {
		n = n.parent
	}
	if n == nil {
		return nil, uia.ErrElementNotFound("no focused window")
	}
	return uia.NewElement(e, n), nil
}

func (e *Engine) CurrentApplication(ctx context.Context) (*uia.Element, error) {
	return e.CurrentWindow(ctx)
}

func (e *Engine) WindowTree(pid int, title string, cfg *uia.TreeBuildConfig) (*uia.UINode, error) {
	for _, c := range e.root.children {
		if pid != 0 && c.attrs.ProcessID != pid {
			continue
		}
		if title != "" && !strings.EqualFold(c.Attributes().Name, title) {
			continue
		}
		return buildTree(c, cfg, 0), nil
	}
	return nil, uia.ErrElementNotFound("window pid=%d title=%q", pid, title)
}

func (e *Engine) WindowTreeByTitle(title string) (*uia.UINode, error) {
	return e.WindowTree(0, title, nil)
}

func (e *Engine) ProcessNameByPID(pid int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.PIDLookups++
	if name, ok := e.processNames[pid]; ok {
		return name, nil
	}
	return "", uia.ErrPlatform("unknown pid %d", pid)
}

func buildTree(n *Node, cfg *uia.TreeBuildConfig, depth int) *uia.UINode {
	mode := uia.PropertyLoadingComplete
	maxDepth := 0
	if cfg != nil {
		if cfg.PropertyMode != "" {
			mode = cfg.PropertyMode
		}
		maxDepth = cfg.MaxDepth
	}
	node := &uia.UINode{Attributes: loadAttributes(n, mode)}
	if maxDepth > 0 && depth >= maxDepth {
		return node
	}
	for _, c := range n.children {
		node.Children = append(node.Children, *buildTree(c, cfg, depth+1))
	}
	return node
}

// loadAttributes applies the property-loading mode: Fast keeps role, name,
// native id, and the enabled/visible flags; Complete keeps everything; Smart
// keeps everything for interactive roles and the fast set otherwise.
func loadAttributes(n *Node, mode uia.PropertyLoadingMode) uia.Attributes {
	full := n.Attributes()
	switch mode {
	case uia.PropertyLoadingFast:
		return uia.Attributes{Role: full.Role, Name: full.Name, NativeID: full.NativeID, Enabled: full.Enabled, Visible: full.Visible}
	case uia.PropertyLoadingSmart:
		if uia.IsInteractiveRole(full.Role) {
			return full
		}
		return uia.Attributes{Role: full.Role, Name: full.Name, NativeID: full.NativeID, Enabled: full.Enabled, Visible: full.Visible}
	default:
		return full
	}
}
