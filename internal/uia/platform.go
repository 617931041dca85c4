package uia

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// NewPlatformEngine returns the accessibility backend for the current OS.
//
// The raw platform bindings (Windows UI Automation, macOS AX, AT-SPI) live
// outside this module and register themselves through RegisterPlatformEngine
// at init time. Without a registered backend every operation fails with a
// platform error, which keeps the selector, recorder, and workflow layers
// fully testable everywhere.
func NewPlatformEngine() Engine {
	platformMu.Lock()
	defer platformMu.Unlock()
	if platformFactory != nil {
		return platformFactory()
	}
	return &stubEngine{os: runtime.GOOS}
}

// RegisterPlatformEngine installs the native backend factory.
func RegisterPlatformEngine(factory func() Engine) {
	platformMu.Lock()
	defer platformMu.Unlock()
	platformFactory = factory
}

var (
	platformMu      sync.Mutex
	platformFactory func() Engine
)

type stubEngine struct{ os string }

func (s *stubEngine) unsupported() *Error {
	return ErrPlatform("unsupported platform: %s", s.os)
}

func (s *stubEngine) Root() *Element { return NewElement(s, stubNode{s}) }

func (s *stubEngine) Focused() (*Element, error)      { return nil, s.unsupported() }
func (s *stubEngine) Applications() ([]*Element, error) { return nil, s.unsupported() }

func (s *stubEngine) ApplicationByName(string) (*Element, error) { return nil, s.unsupported() }

func (s *stubEngine) ApplicationByPID(context.Context, int, time.Duration) (*Element, error) {
	return nil, s.unsupported()
}

func (s *stubEngine) OpenApplication(string) (*Element, error) { return nil, s.unsupported() }
func (s *stubEngine) ActivateApplication(string) error         { return s.unsupported() }
func (s *stubEngine) OpenURL(string, string) (*Element, error) { return nil, s.unsupported() }
func (s *stubEngine) OpenFile(string) error                    { return s.unsupported() }

func (s *stubEngine) RunCommand(context.Context, string, string) (*CommandOutput, error) {
	return nil, s.unsupported()
}

func (s *stubEngine) CaptureScreen(context.Context) (*Screenshot, error) {
	return nil, s.unsupported()
}

func (s *stubEngine) FindWindowByCriteria(context.Context, string, time.Duration) (*Element, error) {
	return nil, s.unsupported()
}

func (s *stubEngine) CurrentWindow(context.Context) (*Element, error)      { return nil, s.unsupported() }
func (s *stubEngine) CurrentApplication(context.Context) (*Element, error) { return nil, s.unsupported() }

func (s *stubEngine) WindowTree(int, string, *TreeBuildConfig) (*UINode, error) {
	return nil, s.unsupported()
}

func (s *stubEngine) WindowTreeByTitle(string) (*UINode, error) { return nil, s.unsupported() }

func (s *stubEngine) ProcessNameByPID(int) (string, error) { return "", s.unsupported() }

// stubNode backs the stub engine's root so locators resolve cleanly to
// not-found instead of panicking.
type stubNode struct{ eng *stubEngine }

func (n stubNode) Attributes() Attributes        { return Attributes{Role: "Desktop"} }
func (n stubNode) Children() ([]Node, error)     { return nil, nil }
func (n stubNode) Parent() (Node, error)         { return nil, nil }
func (n stubNode) Equals(other Node) bool        { _, ok := other.(stubNode); return ok }
func (n stubNode) Click() error                  { return n.eng.unsupported() }
func (n stubNode) DoubleClick() error            { return n.eng.unsupported() }
func (n stubNode) RightClick() error             { return n.eng.unsupported() }
func (n stubNode) Hover() error                  { return n.eng.unsupported() }
func (n stubNode) Focus() error                  { return n.eng.unsupported() }
func (n stubNode) TypeText(string, bool) error   { return n.eng.unsupported() }
func (n stubNode) PressKey(string) error         { return n.eng.unsupported() }
func (n stubNode) SetValue(string) error         { return n.eng.unsupported() }
func (n stubNode) Scroll(string, float64) error  { return n.eng.unsupported() }
func (n stubNode) Invoke() error                 { return n.eng.unsupported() }
func (n stubNode) SelectOption(string) error     { return n.eng.unsupported() }
func (n stubNode) ListOptions() ([]string, error) { return nil, n.eng.unsupported() }
func (n stubNode) IsToggled() (bool, error)      { return false, n.eng.unsupported() }
func (n stubNode) SetToggled(bool) error         { return n.eng.unsupported() }
func (n stubNode) ActivateWindow() error         { return n.eng.unsupported() }
func (n stubNode) Minimize() error               { return n.eng.unsupported() }
func (n stubNode) Maximize() error               { return n.eng.unsupported() }
func (n stubNode) Close() error                  { return n.eng.unsupported() }
func (n stubNode) Capture() (*Screenshot, error) { return nil, n.eng.unsupported() }

func (n stubNode) ExecuteBrowserScript(context.Context, string) (string, error) {
	return "", n.eng.unsupported()
}
