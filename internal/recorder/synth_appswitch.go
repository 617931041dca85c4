package recorder

import (
	"strings"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// switchAttributionWindowMS bounds how far back the trigger event for an
// application switch may lie.
const switchAttributionWindowMS = 1500

// appSwitchFSM watches focus changes at window granularity and emits an
// ApplicationSwitch when the owning process changes after a sufficient
// dwell. The method is attributed to the most recent trigger inside the
// attribution window: Alt+Tab, a taskbar click, any other click, or
// programmatic when nothing qualifies.
type appSwitchFSM struct {
	cfg Config
	eng uia.Engine

	curPID     int
	curApp     string
	focusSince uint64

	lastAltTabTS  uint64
	lastClickTS   uint64
	clickOnTaskbar bool
}

func newAppSwitchFSM(cfg Config, eng uia.Engine) *appSwitchFSM {
	return &appSwitchFSM{cfg: cfg, eng: eng}
}

func (f *appSwitchFSM) tick(uint64) []Event { return nil }

func (f *appSwitchFSM) feed(ev RawEvent) []Event {
	switch e := ev.(type) {
	case RawKeyboard:
		if e.Down && e.VK == vkTab && e.Modifiers.Alt {
			f.lastAltTabTS = e.Time
		}
	case RawMouse:
		if e.Type == MouseDown {
			f.lastClickTS = e.Time
			f.clickOnTaskbar = isTaskbarElement(e.Element)
		}
	case RawFocus:
		return f.onFocus(e)
	}
	return nil
}

func (f *appSwitchFSM) onFocus(e RawFocus) []Event {
	if e.Element == nil {
		return nil
	}
	pid := e.Element.ProcessID()
	if pid == 0 {
		return nil
	}
	if f.curPID == 0 {
		f.curPID = pid
		f.curApp = f.appName(pid, e.Element)
		f.focusSince = e.Time
		return nil
	}
	if pid == f.curPID {
		return nil
	}

	dwell := e.Time - f.focusSince
	from := f.curApp
	to := f.appName(pid, e.Element)

	f.curPID = pid
	f.curApp = to
	f.focusSince = e.Time

	if dwell < f.cfg.AppSwitchDwellTimeThresholdMS {
		return nil
	}
	return []Event{ApplicationSwitch{
		FromApp:     from,
		ToApp:       to,
		Method:      f.attribute(e.Time),
		DwellMS:     dwell,
		Element:     e.Element,
		ElementInfo: snapshotElement(e.Element),
		Time:        e.Time,
	}}
}

func (f *appSwitchFSM) attribute(ts uint64) SwitchMethod {
	altTabAge := age(ts, f.lastAltTabTS)
	clickAge := age(ts, f.lastClickTS)
	switch {
	case altTabAge <= switchAttributionWindowMS && (f.lastClickTS == 0 || altTabAge <= clickAge):
		return SwitchAltTab
	case clickAge <= switchAttributionWindowMS && f.clickOnTaskbar:
		return SwitchTaskbarClick
	case clickAge <= switchAttributionWindowMS:
		return SwitchWindowClick
	}
	return SwitchProgrammatic
}

func (f *appSwitchFSM) appName(pid int, el *uia.Element) string {
	if name, err := uia.ProcessName(f.eng, pid); err == nil && name != "" {
		return name
	}
	return el.Name()
}

func age(now, then uint64) uint64 {
	if then == 0 || then > now {
		return ^uint64(0)
	}
	return now - then
}

func isTaskbarElement(el *uia.Element) bool {
	if el == nil {
		return false
	}
	a := el.Attributes()
	class := strings.ToLower(a.ClassName)
	if strings.Contains(class, "mstasklistwclass") || strings.Contains(class, "shell_traywnd") {
		return true
	}
	return strings.EqualFold(a.Name, "Taskbar")
}
