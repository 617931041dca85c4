package uia

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia/selector"
)

// DefaultLocatorTimeout bounds resolution when the caller gives no timeout.
const DefaultLocatorTimeout = 30 * time.Second

// appLookupDepth is the default depth bound for app: scoped lookups; other
// lookups are unbounded unless the policy says otherwise.
const appLookupDepth = 3

// Locator binds a selector to an engine and resolves it against live
// elements under a timeout/retry policy.
type Locator struct {
	eng      Engine
	sel      selector.Selector
	raw      string
	timeout  time.Duration
	maxDepth int
	root     *Element
	filter   func(*Element) bool
}

// NewLocator builds a locator over an already-parsed selector.
func NewLocator(eng Engine, sel selector.Selector) *Locator {
	return &Locator{eng: eng, sel: sel, raw: sel.String(), timeout: DefaultLocatorTimeout}
}

// ParseLocator parses expr and binds it. Parse failures surface on First/All
// as InvalidSelector.
func ParseLocator(eng Engine, expr string) *Locator {
	l := NewLocator(eng, selector.Parse(expr))
	l.raw = expr
	return l
}

// Within scopes resolution to root's subtree instead of the engine root.
func (l *Locator) Within(root *Element) *Locator {
	l.root = root
	return l
}

// WithTimeout overrides the resolution timeout.
func (l *Locator) WithTimeout(d time.Duration) *Locator {
	if d > 0 {
		l.timeout = d
	}
	return l
}

// WithDepth bounds traversal depth. Zero restores the policy defaults.
func (l *Locator) WithDepth(depth int) *Locator {
	l.maxDepth = depth
	return l
}

// WithFilter adds a post-match predicate.
func (l *Locator) WithFilter(f func(*Element) bool) *Locator {
	l.filter = f
	return l
}

// Selector returns the bound selector expression.
func (l *Locator) Selector() string { return l.raw }

// First resolves to the earliest matching element, retrying until the
// timeout. Ties under Or go to the left operand; depth ties go to document
// order.
func (l *Locator) First(ctx context.Context) (*Element, error) {
	matches, err := l.resolve(ctx, 1)
	if err != nil {
		return nil, err
	}
	return matches[0], nil
}

// All resolves every match, deduplicated, in stable document order. A max
// of 0 means unlimited.
func (l *Locator) All(ctx context.Context, max int) ([]*Element, error) {
	matches, err := l.resolve(ctx, max)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (l *Locator) resolve(ctx context.Context, max int) ([]*Element, error) {
	if msg, bad := selector.IsInvalid(l.sel); bad {
		return nil, ErrInvalidSelector("%s", msg)
	}

	deadline := time.Now().Add(l.timeout)
	for {
		if err := ctx.Err(); err != nil {
			// Cancellation surfaces as not-found without side effects.
			return nil, ErrElementNotFound("%s", l.raw)
		}

		scope := l.scopeNode()
		pass := &matchPass{eng: l.eng, cache: map[Node]Attributes{}, maxDepth: l.maxDepth}
		nodes := pass.matchSet(scope, l.sel)
		elems := l.wrapFiltered(nodes, max)
		if len(elems) > 0 {
			return elems, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrElementNotFound("%s", l.raw)
		}
		sleep := remaining / 10
		if sleep > 50*time.Millisecond {
			sleep = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return nil, ErrElementNotFound("%s", l.raw)
		case <-time.After(sleep):
		}
	}
}

func (l *Locator) scopeNode() Node {
	if l.root != nil {
		return l.root.node
	}
	return l.eng.Root().node
}

func (l *Locator) wrapFiltered(nodes []Node, max int) []*Element {
	var out []*Element
	for _, n := range nodes {
		e := NewElement(l.eng, n)
		if l.filter != nil && !l.filter(e) {
			continue
		}
		out = append(out, e)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// matchPass is one resolution attempt. Attribute reads are cached for the
// duration of the pass; real backends pay a COM round-trip per read.
type matchPass struct {
	eng      Engine
	cache    map[Node]Attributes
	maxDepth int
}

func (mp *matchPass) attrs(n Node) Attributes {
	if a, ok := mp.cache[n]; ok {
		return a
	}
	a := n.Attributes()
	mp.cache[n] = a
	return a
}

// matchSet evaluates sel within scope's subtree and returns matches in
// stable document order (breadth-first, children in declaration order).
func (mp *matchPass) matchSet(scope Node, sel selector.Selector) []Node {
	switch s := sel.(type) {
	case selector.Chain:
		cur := []Node{scope}
		for _, step := range s.Steps {
			cur = mp.evalStep(cur, step)
			if len(cur) == 0 {
				return nil
			}
		}
		return cur
	case selector.And:
		lists := make([][]Node, 0, len(s.Operands))
		for _, op := range s.Operands {
			lists = append(lists, mp.matchSet(scope, op))
		}
		return intersect(lists)
	case selector.Or:
		// Union in operand order: the left operand's matches come first, so
		// First picks the left winner.
		var out []Node
		seen := map[Node]bool{}
		for _, op := range s.Operands {
			for _, n := range mp.matchSet(scope, op) {
				if !seen[n] {
					seen[n] = true
					out = append(out, n)
				}
			}
		}
		return out
	case selector.Not:
		excluded := map[Node]bool{}
		for _, n := range mp.matchSet(scope, s.Inner) {
			excluded[n] = true
		}
		var out []Node
		for _, n := range mp.collect(scope, mp.depthFor(sel)) {
			if !excluded[n] {
				out = append(out, n)
			}
		}
		return out
	case selector.Nth:
		return nthSelect(mp.collect(scope, mp.depthFor(sel)), s.Index)
	case selector.Path:
		if n := mp.navigatePath(scope, s.Value); n != nil {
			return []Node{n}
		}
		return nil
	default:
		depth := mp.depthFor(sel)
		var out []Node
		for _, n := range mp.collect(scope, depth) {
			if mp.leafMatches(n, sel) {
				out = append(out, n)
			}
		}
		return out
	}
}

// evalStep applies one chain step across the current match list. Positional
// steps select within the accumulated list; structural steps recurse into
// each match's subtree as the new scope.
func (mp *matchPass) evalStep(scopes []Node, step selector.Selector) []Node {
	if nth, ok := step.(selector.Nth); ok {
		return nthSelect(scopes, nth.Index)
	}
	var out []Node
	seen := map[Node]bool{}
	for _, scope := range scopes {
		for _, n := range mp.matchSet(scope, step) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// navigatePath follows a slash-separated child-index path from scope.
func (mp *matchPass) navigatePath(scope Node, path string) Node {
	cur := scope
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 {
			return nil
		}
		kids, err := cur.Children()
		if err != nil || idx >= len(kids) {
			return nil
		}
		cur = kids[idx]
	}
	return cur
}

func (mp *matchPass) depthFor(sel selector.Selector) int {
	if mp.maxDepth > 0 {
		return mp.maxDepth
	}
	switch sel.(type) {
	case selector.App:
		return appLookupDepth
	}
	return 0 // unbounded
}

// collect walks the subtree breadth-first to maxDepth (0 = unbounded),
// including the scope itself, children in declaration order.
func (mp *matchPass) collect(scope Node, maxDepth int) []Node {
	type item struct {
		n     Node
		depth int
	}
	var out []Node
	queue := []item{{scope, 0}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		out = append(out, it.n)
		if maxDepth > 0 && it.depth >= maxDepth {
			continue
		}
		kids, err := it.n.Children()
		if err != nil {
			continue
		}
		for _, k := range kids {
			queue = append(queue, item{k, it.depth + 1})
		}
	}
	return out
}

func (mp *matchPass) leafMatches(n Node, sel selector.Selector) bool {
	a := mp.attrs(n)
	switch s := sel.(type) {
	case selector.Role:
		if !RolesMatch(a.Role, s.Role) {
			return false
		}
		if s.Name != "" && !nameMatches(a.BestName(), s.Name) {
			return false
		}
		return true
	case selector.Name:
		return nameMatches(a.BestName(), s.Value)
	case selector.Text:
		return mp.textMatches(n, a, s.Value)
	case selector.ID:
		id, err := computeID(mp.eng, n)
		return err == nil && id == s.Value
	case selector.NativeID:
		return strings.EqualFold(a.NativeID, s.Value)
	case selector.ClassName:
		return strings.EqualFold(a.ClassName, s.Value)
	case selector.Visible:
		return a.Visible == s.Value
	case selector.App:
		if !RolesMatch(a.Role, "application") && !RolesMatch(a.Role, "window") {
			return false
		}
		return nameMatches(a.BestName(), s.Name)
	case selector.Attributes:
		return mp.attributesMatch(a, s.Attrs)
	}
	return false
}

func (mp *matchPass) textMatches(n Node, a Attributes, want string) bool {
	if containsFold(a.Name, want) || containsFold(a.Value, want) || containsFold(a.Description, want) {
		return true
	}
	// Fall back to shallow descendant text; bounded so the matcher stays
	// cheap on wide trees.
	e := &Element{eng: mp.eng, node: n}
	return containsFold(e.Text(1), want)
}

func (mp *matchPass) attributesMatch(a Attributes, want map[string]string) bool {
	if x, okx := want["x"]; okx {
		y := want["y"]
		return boundsContain(a.Bounds, x, y)
	}
	for k, v := range want {
		got, ok := a.Properties[k]
		if !ok {
			switch strings.ToLower(k) {
			case "role":
				got = a.Role
			case "name":
				got = a.Name
			case "value":
				got = a.Value
			case "classname", "class_name":
				got = a.ClassName
			default:
				return false
			}
		}
		if !strings.EqualFold(got, v) {
			return false
		}
	}
	return true
}

func boundsContain(b *Bounds, xs, ys string) bool {
	if b == nil {
		return false
	}
	x, errX := strconv.ParseFloat(xs, 64)
	y, errY := strconv.ParseFloat(ys, 64)
	if errX != nil || errY != nil {
		return false
	}
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

func nameMatches(got, want string) bool {
	if got == "" {
		return false
	}
	return strings.EqualFold(got, want) || containsFold(got, want)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func nthSelect(list []Node, idx int) []Node {
	if idx < 0 {
		idx = len(list) + idx
	}
	if idx < 0 || idx >= len(list) {
		return nil
	}
	return []Node{list[idx]}
}

// intersect keeps the first list's order and drops nodes absent from any
// other list.
func intersect(lists [][]Node) []Node {
	if len(lists) == 0 {
		return nil
	}
	out := lists[0]
	for _, other := range lists[1:] {
		set := map[Node]bool{}
		for _, n := range other {
			set[n] = true
		}
		var kept []Node
		for _, n := range out {
			if set[n] {
				kept = append(kept, n)
			}
		}
		out = kept
		if len(out) == 0 {
			return nil
		}
	}
	return out
}
