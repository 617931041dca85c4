package tools

import (
	"context"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// defaultToolTimeout bounds element lookups inside tool handlers unless the
// call overrides it.
const defaultToolTimeout = 5 * time.Second

// BrowserEvaluator is the extension-bridge surface tools need. A missing
// result (ok=false) means no client answered in time; callers degrade
// gracefully rather than failing.
type BrowserEvaluator interface {
	IsClientConnected() bool
	EvalInActiveTab(ctx context.Context, code string, timeout time.Duration) (string, bool, error)
}

// Deps wires the built-in tools to their collaborators.
type Deps struct {
	Engine uia.Engine
	Bridge BrowserEvaluator
	// ExecuteSequence runs a nested workflow document; the workflow layer
	// injects it to avoid a dependency cycle.
	ExecuteSequence Handler
}

func selParam() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}

func objSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// RegisterBuiltins installs the engine tool surface consumed by the
// executor and the tool server.
func RegisterBuiltins(reg *Registry, deps Deps) error {
	eng := deps.Engine

	locate := func(ctx context.Context, args map[string]any) (*uia.Element, error) {
		expr, _ := args["selector"].(string)
		loc := uia.ParseLocator(eng, expr).WithTimeout(argDuration(args, "timeout_ms", defaultToolTimeout))
		return loc.First(ctx)
	}

	type entry struct {
		def Definition
		h   Handler
	}
	entries := []entry{
		{
			Definition{
				Name:        "click_element",
				Description: "Click the first element matching a selector.",
				Parameters: objSchema([]string{"selector"}, map[string]any{
					"selector":   selParam(),
					"timeout_ms": map[string]any{"type": "integer"},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				el, err := locate(ctx, args)
				if err != nil {
					return nil, err
				}
				if err := el.Click(); err != nil {
					return nil, err
				}
				return map[string]any{"action": "click", "element": el.Name(), "role": el.Role()}, nil
			},
		},
		{
			Definition{
				Name:        "type_into_element",
				Description: "Type text into the first element matching a selector.",
				Parameters: objSchema([]string{"selector", "text_to_type"}, map[string]any{
					"selector":      selParam(),
					"text_to_type":  map[string]any{"type": "string"},
					"use_clipboard": map[string]any{"type": "boolean"},
					"clear_before":  map[string]any{"type": "boolean"},
					"timeout_ms":    map[string]any{"type": "integer"},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				el, err := locate(ctx, args)
				if err != nil {
					return nil, err
				}
				text, _ := args["text_to_type"].(string)
				if clear, _ := args["clear_before"].(bool); clear {
					if err := el.SetValue(""); err != nil {
						return nil, err
					}
				}
				useClipboard, _ := args["use_clipboard"].(bool)
				if err := el.TypeText(text, useClipboard); err != nil {
					return nil, err
				}
				return map[string]any{"action": "type", "element": el.Name(), "text": text}, nil
			},
		},
		{
			Definition{
				Name:        "press_key",
				Description: "Press a key chord on an element, or on the focused element when no selector is given.",
				Parameters: objSchema([]string{"key"}, map[string]any{
					"key":        map[string]any{"type": "string", "minLength": 1},
					"selector":   map[string]any{"type": "string"},
					"timeout_ms": map[string]any{"type": "integer"},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				key, _ := args["key"].(string)
				var el *uia.Element
				var err error
				if sel, _ := args["selector"].(string); sel != "" {
					el, err = locate(ctx, args)
				} else {
					el, err = eng.Focused()
				}
				if err != nil {
					return nil, err
				}
				if err := el.PressKey(key); err != nil {
					return nil, err
				}
				return map[string]any{"action": "press_key", "key": key}, nil
			},
		},
		{
			Definition{
				Name:        "open_application",
				Description: "Launch or attach to an application.",
				Parameters: objSchema([]string{"app_name"}, map[string]any{
					"app_name": map[string]any{"type": "string", "minLength": 1},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				name, _ := args["app_name"].(string)
				el, err := eng.OpenApplication(name)
				if err != nil {
					return nil, err
				}
				return map[string]any{"action": "open_application", "application": el.Name(), "pid": el.ProcessID()}, nil
			},
		},
		{
			Definition{
				Name:        "open_url",
				Description: "Open a URL, optionally in a specific browser.",
				Parameters: objSchema([]string{"url"}, map[string]any{
					"url":     map[string]any{"type": "string", "minLength": 1},
					"browser": map[string]any{"type": "string"},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				url, _ := args["url"].(string)
				browser, _ := args["browser"].(string)
				el, err := eng.OpenURL(url, browser)
				if err != nil {
					return nil, err
				}
				return map[string]any{"action": "open_url", "url": url, "window": el.Name()}, nil
			},
		},
		{
			Definition{
				Name:        "navigate_browser",
				Description: "Navigate the active browser window to a URL.",
				Parameters: objSchema([]string{"url"}, map[string]any{
					"url":     map[string]any{"type": "string", "minLength": 1},
					"browser": map[string]any{"type": "string"},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				url, _ := args["url"].(string)
				browser, _ := args["browser"].(string)
				el, err := eng.OpenURL(url, browser)
				if err != nil {
					return nil, err
				}
				return map[string]any{"action": "navigate_browser", "url": url, "window": el.Name()}, nil
			},
		},
		{
			Definition{
				Name:        "run_command",
				Description: "Run a shell command through the platform engine.",
				Parameters: objSchema(nil, map[string]any{
					"windows_command": map[string]any{"type": "string"},
					"unix_command":    map[string]any{"type": "string"},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				win, _ := args["windows_command"].(string)
				unix, _ := args["unix_command"].(string)
				out, err := eng.RunCommand(ctx, win, unix)
				if err != nil {
					return nil, err
				}
				return map[string]any{"exit_status": out.ExitStatus, "stdout": out.Stdout, "stderr": out.Stderr}, nil
			},
		},
		{
			Definition{
				Name:        "validate_element",
				Description: "Check whether an element exists; never fails on absence.",
				Parameters: objSchema([]string{"selector"}, map[string]any{
					"selector":   selParam(),
					"timeout_ms": map[string]any{"type": "integer"},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				el, err := locate(ctx, args)
				if err != nil {
					if uia.KindOf(err) == uia.KindElementNotFound {
						return map[string]any{"exists": false}, nil
					}
					return nil, err
				}
				a := el.Attributes()
				return map[string]any{
					"exists":  true,
					"role":    a.Role,
					"name":    a.Name,
					"enabled": a.Enabled,
					"visible": a.Visible,
				}, nil
			},
		},
		{
			Definition{
				Name:        "wait_for_element",
				Description: "Wait until an element satisfies a condition.",
				Parameters: objSchema([]string{"selector"}, map[string]any{
					"selector":   selParam(),
					"condition":  map[string]any{"type": "string", "enum": []any{"exists", "visible", "enabled", "focused"}},
					"timeout_ms": map[string]any{"type": "integer"},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				cond, _ := args["condition"].(string)
				if cond == "" {
					cond = "exists"
				}
				expr, _ := args["selector"].(string)
				loc := uia.ParseLocator(eng, expr).
					WithTimeout(argDuration(args, "timeout_ms", defaultToolTimeout)).
					WithFilter(func(el *uia.Element) bool {
						a := el.Attributes()
						switch cond {
						case "visible":
							return a.Visible
						case "enabled":
							return a.Enabled
						case "focused":
							return a.Focused
						}
						return true
					})
				el, err := loc.First(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"condition": cond, "element": el.Name(), "met": true}, nil
			},
		},
		{
			Definition{
				Name:        "get_applications",
				Description: "List running applications.",
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				apps, err := eng.Applications()
				if err != nil {
					return nil, err
				}
				var out []map[string]any
				for _, a := range apps {
					out = append(out, map[string]any{"name": a.Name(), "pid": a.ProcessID()})
				}
				return map[string]any{"applications": out}, nil
			},
		},
		{
			Definition{
				Name:        "get_window_tree",
				Description: "Serialize a window's accessibility tree.",
				Parameters: objSchema(nil, map[string]any{
					"pid":           map[string]any{"type": "integer"},
					"title":         map[string]any{"type": "string"},
					"property_mode": map[string]any{"type": "string", "enum": []any{"fast", "complete", "smart"}},
					"max_depth":     map[string]any{"type": "integer"},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				cfg := &uia.TreeBuildConfig{
					PropertyMode: uia.PropertyLoadingMode(argString(args, "property_mode", string(uia.PropertyLoadingComplete))),
					MaxDepth:     argInt(args, "max_depth", 0),
				}
				title, _ := args["title"].(string)
				tree, err := eng.WindowTree(argInt(args, "pid", 0), title, cfg)
				if err != nil {
					return nil, err
				}
				return map[string]any{"ui_tree": tree}, nil
			},
		},
		{
			Definition{
				Name:        "get_focused_window_tree",
				Description: "Serialize the focused window's accessibility tree.",
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				win, err := eng.CurrentWindow(ctx)
				if err != nil {
					return nil, err
				}
				tree, err := eng.WindowTree(win.ProcessID(), win.Name(), nil)
				if err != nil {
					return nil, err
				}
				return map[string]any{"ui_tree": tree}, nil
			},
		},
		{
			Definition{
				Name:        "extract_elements_data",
				Description: "Collect attribute data from every element matching a selector.",
				Parameters: objSchema([]string{"selector"}, map[string]any{
					"selector":   selParam(),
					"max":        map[string]any{"type": "integer"},
					"timeout_ms": map[string]any{"type": "integer"},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				expr, _ := args["selector"].(string)
				els, err := uia.ParseLocator(eng, expr).
					WithTimeout(argDuration(args, "timeout_ms", defaultToolTimeout)).
					All(ctx, argInt(args, "max", 0))
				if err != nil {
					return nil, err
				}
				var rows []map[string]any
				for _, el := range els {
					a := el.Attributes()
					row := map[string]any{
						"role":    a.Role,
						"name":    a.Name,
						"value":   a.Value,
						"enabled": a.Enabled,
						"visible": a.Visible,
					}
					if id, err := el.ID(); err == nil {
						row["id"] = id
					}
					rows = append(rows, row)
				}
				return map[string]any{"elements": rows, "count": len(rows)}, nil
			},
		},
		{
			Definition{
				Name:        "execute_browser_script",
				Description: "Evaluate JavaScript in the active browser tab via the extension bridge.",
				Parameters: objSchema([]string{"script"}, map[string]any{
					"script":     map[string]any{"type": "string", "minLength": 1},
					"timeout_ms": map[string]any{"type": "integer"},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				if deps.Bridge == nil || !deps.Bridge.IsClientConnected() {
					// No extension attached: a missing result, not an error.
					return map[string]any{"result": nil, "connected": false}, nil
				}
				script, _ := args["script"].(string)
				result, ok, err := deps.Bridge.EvalInActiveTab(ctx, script, argDuration(args, "timeout_ms", defaultToolTimeout))
				if err != nil {
					return nil, err
				}
				if !ok {
					return map[string]any{"result": nil, "connected": true}, nil
				}
				return map[string]any{"result": result, "connected": true}, nil
			},
		},
		{
			Definition{
				Name:        "delay",
				Description: "Sleep for a number of milliseconds.",
				Parameters: objSchema([]string{"delay_ms"}, map[string]any{
					"delay_ms": map[string]any{"type": "integer", "minimum": 0},
				}),
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				d := argDuration(args, "delay_ms", 0)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(d):
				}
				return map[string]any{"slept_ms": d.Milliseconds()}, nil
			},
		},
	}

	for _, e := range entries {
		if err := reg.Register(e.def, e.h); err != nil {
			return err
		}
	}

	if deps.ExecuteSequence != nil {
		err := reg.Register(Definition{
			Name:        "execute_sequence",
			Description: "Run a nested workflow document.",
			Parameters: objSchema([]string{"steps"}, map[string]any{
				"steps": map[string]any{"type": "array"},
			}),
		}, deps.ExecuteSequence)
		if err != nil {
			return err
		}
	}
	return nil
}

func argString(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func argDuration(args map[string]any, key string, def time.Duration) time.Duration {
	if ms := argInt(args, key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
