package recorder

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PerformanceMode trades capture fidelity for system load.
type PerformanceMode string

const (
	// PerformanceNormal captures everything with full detail.
	PerformanceNormal PerformanceMode = "normal"
	// PerformanceBalanced filters mouse noise and caps throughput at 20
	// events per second with a 25ms processing delay.
	PerformanceBalanced PerformanceMode = "balanced"
	// PerformanceLowEnergy filters mouse and keyboard noise and caps
	// throughput at 10 events per second with a 50ms processing delay.
	PerformanceLowEnergy PerformanceMode = "low_energy"
)

// Config controls what the recorder captures and how aggressively it
// filters.
type Config struct {
	RecordMouse                bool
	RecordKeyboard             bool
	CaptureUIElements          bool
	RecordClipboard            bool
	RecordHotkeys              bool
	RecordTextInputCompletion  bool
	RecordApplicationSwitches  bool
	RecordBrowserTabNavigation bool

	// AppSwitchDwellTimeThresholdMS is the minimum dwell on the previous
	// window before a focus change counts as an application switch.
	AppSwitchDwellTimeThresholdMS uint64
	// BrowserDetectionTimeoutMS bounds URL/title detection after a tab
	// action.
	BrowserDetectionTimeoutMS uint64
	// TextInputCompletionTimeoutMS flushes a non-empty keystroke buffer
	// after inactivity.
	TextInputCompletionTimeoutMS uint64
	// MaxClipboardContentLength truncates recorded clipboard content.
	MaxClipboardContentLength int
	TrackModifierStates       bool
	// MouseMoveThrottleMS coalesces move (and wheel) events.
	MouseMoveThrottleMS uint64
	// MinDragDistance in pixels distinguishes a drag from a click.
	MinDragDistance float64

	// Ignore lists suppress events before synthesis. Entries match
	// case-insensitively by substring; entries containing glob
	// metacharacters match as doublestar patterns instead.
	IgnoreFocusPatterns    []string
	IgnorePropertyPatterns []string
	IgnoreWindowTitles     []string
	IgnoreApplications     []string

	PerformanceMode PerformanceMode
	// EventProcessingDelayMS overrides the performance-mode delay when >= 0.
	EventProcessingDelayMS int
	// MaxEventsPerSecond overrides the performance-mode cap when > 0.
	MaxEventsPerSecond int
	FilterMouseNoise   bool
	FilterKeyboardNoise bool
	ReduceUIElementCapture bool

	EnableHighlighting   bool
	HighlightColor       uint32 // BGR
	HighlightDurationMS  uint64
	ShowHighlightLabels  bool
	HighlightMaxConcurrent int
}

// DefaultConfig mirrors the recorder's production defaults.
func DefaultConfig() Config {
	return Config{
		RecordMouse:                true,
		RecordKeyboard:             true,
		CaptureUIElements:          true,
		RecordClipboard:            true,
		RecordHotkeys:              true,
		RecordTextInputCompletion:  true,
		RecordApplicationSwitches:  true,
		RecordBrowserTabNavigation: true,

		AppSwitchDwellTimeThresholdMS: 100,
		BrowserDetectionTimeoutMS:     1000,
		TextInputCompletionTimeoutMS:  2000,
		MaxClipboardContentLength:     10240,
		TrackModifierStates:           true,
		MouseMoveThrottleMS:           100,
		MinDragDistance:               5.0,

		IgnoreFocusPatterns: []string{
			"notification", "tooltip", "popup",
			"sharing your screen", "recording screen", "screen capture",
			"screen share", "is sharing", "screen recording", "presenting",
			"google meet", "zoom", "loom",
			"1password", "lastpass", "dashlane", "bitwarden",
			"battery", "volume", "network", "wifi", "bluetooth",
			"download", "progress", "update", "sync", "indexing",
			"scanning", "backup", "maintenance", "defender", "antivirus",
			"security", "system tray", "hidden icons",
		},
		IgnorePropertyPatterns: []string{
			"clock", "time",
			"sharing", "recording", "capture", "presenting",
			"google meet", "zoom", "loom",
			"1password", "lastpass", "dashlane", "bitwarden",
			"battery", "volume", "network", "download", "progress",
			"percent", "status", "state", "level", "signal",
			"connection", "sync", "update", "version",
		},
		IgnoreWindowTitles: []string{
			"Windows Security", "Action Center",
			"Google Meet", "meet.google.com", "You're presenting",
			"Stop presenting", "Zoom Meeting",
			"You are sharing your screen", "Stop sharing",
			"loom.com",
			"1Password", "LastPass", "Dashlane", "Bitwarden",
			"Notification area", "System tray", "Hidden icons",
			"Battery meter", "Volume mixer",
			"Windows Update", "Windows Defender",
			"Desktop Window Manager", "Windows Shell Experience",
			"Cortana", "Taskbar", "Focus Assist", "Quick Actions",
			"News and interests", "Widgets",
		},
		IgnoreApplications: []string{
			"dwm.exe", "taskmgr.exe",
			"winlogon.exe", "csrss.exe", "wininit.exe", "services.exe",
			"lsass.exe", "svchost.exe", "conhost.exe", "rundll32.exe",
			"backgroundtaskhost.exe", "runtimebroker.exe",
			"applicationframehost.exe", "shellexperiencehost.exe",
			"startmenuexperiencehost.exe", "searchui.exe", "searchapp.exe",
			"cortana.exe", "sihost.exe", "msedgewebview2.exe",
			"msmpeng.exe", "smartscreen.exe",
			"audiodg.exe", "fontdrvhost.exe", "wmiprvse.exe",
			"dllhost.exe", "msiexec.exe", "trustedinstaller.exe",
			"1Password.exe", "LastPass.exe", "Dashlane.exe", "Bitwarden.exe",
			"SnippingTool.exe",
		},

		PerformanceMode:        PerformanceNormal,
		EventProcessingDelayMS: -1,
		MaxEventsPerSecond:     0,

		EnableHighlighting:     false,
		HighlightColor:         0x0000FF, // red in BGR
		HighlightDurationMS:    500,
		ShowHighlightLabels:    true,
		HighlightMaxConcurrent: 10,
	}
}

// BalancedConfig applies moderate optimizations on top of the defaults.
func BalancedConfig() Config {
	c := DefaultConfig()
	c.PerformanceMode = PerformanceBalanced
	c.FilterMouseNoise = true
	c.MouseMoveThrottleMS = 200
	return c
}

// LowEnergyConfig is the aggressive preset for weak machines.
func LowEnergyConfig() Config {
	c := DefaultConfig()
	c.PerformanceMode = PerformanceLowEnergy
	c.MaxEventsPerSecond = 5
	c.EventProcessingDelayMS = 100
	c.FilterMouseNoise = true
	c.FilterKeyboardNoise = true
	c.ReduceUIElementCapture = true
	c.RecordTextInputCompletion = false
	c.MouseMoveThrottleMS = 500
	return c
}

// EffectiveProcessingDelayMS resolves the per-cycle delay for the active
// performance mode.
func (c Config) EffectiveProcessingDelayMS() uint64 {
	if c.EventProcessingDelayMS >= 0 {
		return uint64(c.EventProcessingDelayMS)
	}
	switch c.PerformanceMode {
	case PerformanceBalanced:
		return 25
	case PerformanceLowEnergy:
		return 50
	}
	return 0
}

// EffectiveMaxEventsPerSecond resolves the output rate cap; 0 means
// unlimited.
func (c Config) EffectiveMaxEventsPerSecond() int {
	if c.MaxEventsPerSecond > 0 {
		return c.MaxEventsPerSecond
	}
	switch c.PerformanceMode {
	case PerformanceBalanced:
		return 20
	case PerformanceLowEnergy:
		return 10
	}
	return 0
}

// ShouldFilterMouseNoise reports whether raw moves and wheels are dropped.
func (c Config) ShouldFilterMouseNoise() bool {
	return c.FilterMouseNoise || c.PerformanceMode == PerformanceBalanced || c.PerformanceMode == PerformanceLowEnergy
}

// ShouldFilterKeyboardNoise reports whether unmodified key-downs are
// dropped.
func (c Config) ShouldFilterKeyboardNoise() bool {
	return c.FilterKeyboardNoise || c.PerformanceMode == PerformanceLowEnergy
}

// ShouldReduceUICapture reports whether expensive element capture is
// reduced.
func (c Config) ShouldReduceUICapture() bool {
	return c.ReduceUIElementCapture || c.PerformanceMode == PerformanceBalanced || c.PerformanceMode == PerformanceLowEnergy
}

// matchesIgnoreList applies the ignore-entry semantics: substring match,
// case-insensitive, with doublestar patterns for entries carrying glob
// metacharacters.
func matchesIgnoreList(value string, patterns []string) bool {
	if value == "" {
		return false
	}
	lower := strings.ToLower(value)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		pl := strings.ToLower(p)
		if strings.ContainsAny(pl, "*?[{") {
			if ok, err := doublestar.Match(pl, lower); err == nil && ok {
				return true
			}
			continue
		}
		if strings.Contains(lower, pl) {
			return true
		}
	}
	return false
}
