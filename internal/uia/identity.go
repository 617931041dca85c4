package uia

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/zeebo/blake3"
)

// The stable element id is a 64-bit truncation of a blake3 digest over the
// ordered identity tuple:
//
//	(role, best_name, class_name, process_name, depth,
//	 sibling_index_among_same_role, parent_id_or_zero)
//
// The same live node queried twice within one process session hashes to the
// same tuple, so the id is equal across independent lookups. The id is not
// stable across processes, across windows of the same process, or across
// navigation that changes the parent chain.

// ID returns the element's stable identity, computing and caching it on
// first use.
func (e *Element) ID() (string, error) {
	e.mu.Lock()
	if e.id != "" {
		id := e.id
		e.mu.Unlock()
		return id, nil
	}
	e.mu.Unlock()

	id, err := computeID(e.eng, e.node)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	e.id = id
	e.mu.Unlock()
	return id, nil
}

func computeID(eng Engine, node Node) (string, error) {
	attrs := node.Attributes()

	parent, err := node.Parent()
	if err != nil {
		return "", platformErr("identity parent walk", err)
	}

	parentID := "0"
	depth := 0
	siblingIndex := 0
	if parent != nil {
		parentID, err = computeID(eng, parent)
		if err != nil {
			return "", err
		}
		depth = nodeDepth(parent) + 1
		siblingIndex, err = siblingIndexAmongRole(parent, node, attrs.Role)
		if err != nil {
			return "", err
		}
	}

	procName := ""
	if attrs.ProcessID != 0 {
		// Process name resolution is best-effort; a vanished process still
		// yields a usable (if less specific) id.
		if n, perr := ProcessName(eng, attrs.ProcessID); perr == nil {
			procName = n
		}
	}

	h := blake3.New()
	writeField := func(s string) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		_, _ = h.Write(n[:])
		_, _ = h.Write([]byte(s))
	}
	writeField(attrs.Role)
	writeField(attrs.BestName())
	writeField(attrs.ClassName)
	writeField(procName)
	writeField(strconv.Itoa(depth))
	writeField(strconv.Itoa(siblingIndex))
	writeField(parentID)

	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum[:8]), nil
}

func nodeDepth(node Node) int {
	depth := 0
	cur := node
	for {
		p, err := cur.Parent()
		if err != nil || p == nil {
			return depth
		}
		depth++
		cur = p
	}
}

// siblingIndexAmongRole returns the node's position among its parent's
// children that share its role, in document order.
func siblingIndexAmongRole(parent, node Node, role string) (int, error) {
	kids, err := parent.Children()
	if err != nil {
		return 0, platformErr("identity sibling walk", err)
	}
	idx := 0
	for _, k := range kids {
		if k.Equals(node) {
			return idx, nil
		}
		if k.Attributes().Role == role {
			idx++
		}
	}
	// Node disappeared from its parent between reads; fall back to the end
	// position rather than failing the whole id computation.
	return idx, nil
}
