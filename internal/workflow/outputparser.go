package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// RunOutputParser evaluates a user-supplied transformer over a step's
// output. The script runs out of process in a Node.js child with two
// lexical bindings in scope: `tree` (the UI tree extracted from the output,
// or null) and `sequenceResult` (the full output JSON). The script's return
// value, JSON-encoded on the child's stdout, replaces the step result. A
// non-zero exit or non-JSON stdout surfaces as ParserError.
func RunOutputParser(ctx context.Context, def *ParserDef, toolOutput any) (any, error) {
	if def == nil {
		return toolOutput, nil
	}
	if err := def.validate(); err != nil {
		return nil, uia.ErrInvalidArgument("%v", err)
	}

	userCode := def.JavascriptCode
	if def.JavascriptFilePath != "" {
		b, err := os.ReadFile(def.JavascriptFilePath)
		if err != nil {
			return nil, uia.ErrParser(err, "read parser script %s", def.JavascriptFilePath)
		}
		userCode = string(b)
	}

	tree := findUITree(toolOutput, def.UITreeSourceStepID)
	script, err := buildParserScript(userCode, tree, toolOutput)
	if err != nil {
		return nil, err
	}
	return runNodeScript(ctx, script)
}

func buildParserScript(userCode string, tree, toolOutput any) (string, error) {
	treeJSON, err := json.Marshal(tree)
	if err != nil {
		return "", uia.ErrParser(err, "serialize ui tree")
	}
	outputJSON, err := json.Marshal(toolOutput)
	if err != nil {
		return "", uia.ErrParser(err, "serialize tool output")
	}
	return fmt.Sprintf(`
const tree = %s;
const sequenceResult = %s;
const __result = (function() {
%s
})();
process.stdout.write(JSON.stringify(__result === undefined ? null : __result));
`, treeJSON, outputJSON, userCode), nil
}

func runNodeScript(ctx context.Context, script string) (any, error) {
	cmd := exec.CommandContext(ctx, "node", "-")
	cmd.Stdin = strings.NewReader(script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, uia.ErrParser(err, "parser script failed: %s", strings.TrimSpace(stderr.String()))
	}
	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return nil, uia.ErrParser(nil, "parser script produced no output")
	}
	var v any
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		return nil, uia.ErrParser(err, "parser script stdout is not JSON")
	}
	return v, nil
}

// findUITree locates the UI tree a parser should receive:
//  1. the named source step's ui_tree when set and present,
//  2. any top-level ui_tree,
//  3. the most recent ui_tree nested in results[].result.content[]
//     (including the legacy JSON-embedded-as-text path).
//
// Absent all three, the parser sees tree = null.
func findUITree(toolOutput any, sourceStepID string) any {
	obj, ok := toolOutput.(map[string]any)
	if !ok {
		return nil
	}

	if sourceStepID != "" {
		if results, ok := obj["results"].([]any); ok {
			if tree := treeFromStep(results, sourceStepID); tree != nil {
				return tree
			}
			// The referenced step may legitimately carry no tree (a close or
			// minimize step); fall back to the general search.
		}
	}

	if tree, ok := obj["ui_tree"]; ok && tree != nil {
		return tree
	}

	if results, ok := obj["results"].([]any); ok {
		for i := len(results) - 1; i >= 0; i-- {
			if tree := treeFromResult(results[i]); tree != nil {
				return tree
			}
		}
	}
	return nil
}

func treeFromStep(results []any, stepID string) any {
	for _, r := range results {
		entry, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := entry["step_id"].(string); id == stepID {
			if tree := treeFromResult(entry); tree != nil {
				return tree
			}
			return nil
		}
		// Grouped steps nest their own results.
		if nested, ok := entry["results"].([]any); ok {
			if tree := treeFromStep(nested, stepID); tree != nil {
				return tree
			}
		}
	}
	return nil
}

func treeFromResult(r any) any {
	entry, ok := r.(map[string]any)
	if !ok {
		return nil
	}
	if tree, ok := entry["ui_tree"]; ok && tree != nil {
		return tree
	}
	result, ok := entry["result"].(map[string]any)
	if !ok {
		return nil
	}
	if tree, ok := result["ui_tree"]; ok && tree != nil {
		return tree
	}
	content, ok := result["content"].([]any)
	if !ok {
		return nil
	}
	for i := len(content) - 1; i >= 0; i-- {
		item, ok := content[i].(map[string]any)
		if !ok {
			continue
		}
		if tree, ok := item["ui_tree"]; ok && tree != nil {
			return tree
		}
		if text, ok := item["text"].(string); ok {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(text), &parsed); err == nil {
				if tree, ok := parsed["ui_tree"]; ok && tree != nil {
					return tree
				}
			}
		}
	}
	return nil
}
