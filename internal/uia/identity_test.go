package uia_test

import (
	"context"
	"testing"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia/uiatest"
)

// Identity is stable across independent lookups of the same node within one
// session.
func TestElementID_StableAcrossLookups(t *testing.T) {
	eng := calculatorTree()
	first, err := uia.ParseLocator(eng, "nativeid:plusButton").WithTimeout(time.Second).First(context.Background())
	if err != nil {
		t.Fatalf("lookup 1: %v", err)
	}
	second, err := uia.ParseLocator(eng, "role:Button && name:Plus").WithTimeout(time.Second).First(context.Background())
	if err != nil {
		t.Fatalf("lookup 2: %v", err)
	}
	id1, err := first.ID()
	if err != nil {
		t.Fatalf("ID 1: %v", err)
	}
	id2, err := second.ID()
	if err != nil {
		t.Fatalf("ID 2: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ across lookups: %s vs %s", id1, id2)
	}
	if len(id1) != 16 {
		t.Fatalf("id is not a 64-bit hex hash: %q", id1)
	}
}

// Distinct elements within one window subtree hash to distinct ids.
func TestElementID_UniqueWithinWindow(t *testing.T) {
	eng := calculatorTree()
	win := mustApp(t, eng, "Calculator")
	els, err := uia.ParseLocator(eng, "visible:true").
		Within(win).
		WithTimeout(time.Second).
		All(context.Background(), 0)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	seen := map[string]string{}
	for _, el := range els {
		id, err := el.ID()
		if err != nil {
			t.Fatalf("ID: %v", err)
		}
		if prev, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s for %q and %q", id, prev, el.Name())
		}
		seen[id] = el.Name()
	}
	if len(seen) < 7 {
		t.Fatalf("expected ids for the full subtree, got %d", len(seen))
	}
}

// Same-role siblings are disambiguated by positional index.
func TestElementID_SiblingsDiffer(t *testing.T) {
	eng := uiatest.NewEngine(
		uiatest.N("Window", "W",
			uiatest.N("Button", ""),
			uiatest.N("Button", ""),
		),
	)
	els, err := uia.ParseLocator(eng, "role:Button").WithTimeout(time.Second).All(context.Background(), 0)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(els) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(els))
	}
	a, _ := els[0].ID()
	b, _ := els[1].ID()
	if a == b {
		t.Fatalf("identical ids for distinct anonymous siblings")
	}
}

// The #id selector resolves an element captured earlier.
func TestLocator_IDSelectorRoundTrip(t *testing.T) {
	eng := calculatorTree()
	el, err := uia.ParseLocator(eng, "name:Plus").WithTimeout(time.Second).First(context.Background())
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	id, err := el.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	again, err := uia.ParseLocator(eng, "#"+id).WithTimeout(time.Second).First(context.Background())
	if err != nil {
		t.Fatalf("resolve by id: %v", err)
	}
	if again.Name() != "Plus" {
		t.Fatalf("id lookup resolved %q", again.Name())
	}
}

func TestProcessNameCache_ServesRepeatLookups(t *testing.T) {
	uia.ResetProcessNameCache()
	eng := calculatorTree()
	eng.SetProcessName(999001, "calc.exe")
	for i := 0; i < 5; i++ {
		name, err := uia.ProcessName(eng, 999001)
		if err != nil {
			t.Fatalf("ProcessName: %v", err)
		}
		if name != "calc.exe" {
			t.Fatalf("name: %q", name)
		}
	}
	if eng.PIDLookups != 1 {
		t.Fatalf("expected a single backend lookup, got %d", eng.PIDLookups)
	}
}

func TestElementText_DeduplicatesAndTrims(t *testing.T) {
	eng := uiatest.NewEngine(
		uiatest.N("Window", "W",
			uiatest.N("Group", "Card",
				uiatest.N("Text", "  Total  "),
				uiatest.N("Text", "Total"),
				uiatest.N("Edit", "").WithValue("42"),
			),
		),
	)
	el, err := uia.ParseLocator(eng, "role:Group").WithTimeout(time.Second).First(context.Background())
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if got := el.Text(1); got != "Card Total 42" {
		t.Fatalf("Text(1) = %q", got)
	}
}
