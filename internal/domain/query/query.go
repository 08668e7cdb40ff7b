// Package query models backend-agnostic boolean query trees.
//
// A Node is immutable once built. The canonical encoding (Canonical) is
// byte-stable for identical trees, which the search session relies on for
// criteria fingerprinting.
package query

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// CompareOp is a comparison operator for Compare leaves.
type CompareOp int

const (
	// OpEQ matches values equal to the operand.
	OpEQ CompareOp = iota
	// OpNE matches values not equal to the operand.
	OpNE
	// OpLT matches values lexically below the operand.
	OpLT
	// OpLE matches values lexically at or below the operand.
	OpLE
	// OpGT matches values lexically above the operand.
	OpGT
	// OpGE matches values lexically at or above the operand.
	OpGE
)

// String returns the operator mnemonic.
func (op CompareOp) String() string {
	switch op {
	case OpEQ:
		return "eq"
	case OpNE:
		return "ne"
	case OpLT:
		return "lt"
	case OpLE:
		return "le"
	case OpGT:
		return "gt"
	case OpGE:
		return "ge"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// MatchFlags control FuzzyMatch semantics.
type MatchFlags int

const (
	// MatchSubstring matches the value anywhere in the field.
	MatchSubstring MatchFlags = 1 << iota
	// MatchPrefix matches the value at the start of the field.
	MatchPrefix
	// MatchIgnoreCase folds case before matching.
	MatchIgnoreCase
)

// Node is a node of a boolean query tree.
// Implementations are the And/Or/Not/Exists/Compare/Fuzzy constructors.
type Node interface {
	appendCanonical(dst []byte) []byte
}

// AndNode is a conjunction. An empty AndNode is vacuously true.
type AndNode struct{ children []Node }

// OrNode is a disjunction. An empty OrNode is false.
type OrNode struct{ children []Node }

// NotNode negates its child.
type NotNode struct{ child Node }

// ExistsNode is true when the field is present on the row.
type ExistsNode struct{ field string }

// CompareNode compares a field value against an operand.
type CompareNode struct {
	field string
	op    CompareOp
	value string
}

// FuzzyNode is a substring/prefix match with optional case folding.
type FuzzyNode struct {
	field string
	value string
	flags MatchFlags
}

// And builds a conjunction of children.
func And(children ...Node) *AndNode { return &AndNode{children: children} }

// Or builds a disjunction of children.
func Or(children ...Node) *OrNode { return &OrNode{children: children} }

// Not negates child.
func Not(child Node) *NotNode { return &NotNode{child: child} }

// Exists builds a field presence check.
func Exists(field string) *ExistsNode { return &ExistsNode{field: field} }

// Compare builds a comparison leaf.
func Compare(field string, op CompareOp, value string) *CompareNode {
	return &CompareNode{field: field, op: op, value: value}
}

// Fuzzy builds a fuzzy-match leaf.
func Fuzzy(field, value string, flags MatchFlags) *FuzzyNode {
	return &FuzzyNode{field: field, value: value, flags: flags}
}

// Children returns the conjunction members.
func (n *AndNode) Children() []Node { return n.children }

// Children returns the disjunction members.
func (n *OrNode) Children() []Node { return n.children }

// Child returns the negated node.
func (n *NotNode) Child() Node { return n.child }

// Field returns the checked field name.
func (n *ExistsNode) Field() string { return n.field }

// Field returns the compared field name.
func (n *CompareNode) Field() string { return n.field }

// Op returns the comparison operator.
func (n *CompareNode) Op() CompareOp { return n.op }

// Value returns the comparison operand.
func (n *CompareNode) Value() string { return n.value }

// Field returns the matched field name.
func (n *FuzzyNode) Field() string { return n.field }

// Value returns the match term.
func (n *FuzzyNode) Value() string { return n.value }

// Flags returns the match flags.
func (n *FuzzyNode) Flags() MatchFlags { return n.flags }

// Canonical returns a deterministic byte encoding of the tree.
// Identical trees encode identically; the encoding is length-framed so
// distinct trees cannot collide by concatenation.
func Canonical(n Node) []byte {
	if n == nil {
		return nil
	}
	return n.appendCanonical(nil)
}

func (n *AndNode) appendCanonical(dst []byte) []byte {
	dst = append(dst, 'A')
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(n.children)))
	for _, c := range n.children {
		dst = c.appendCanonical(dst)
	}
	return dst
}

func (n *OrNode) appendCanonical(dst []byte) []byte {
	dst = append(dst, 'O')
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(n.children)))
	for _, c := range n.children {
		dst = c.appendCanonical(dst)
	}
	return dst
}

func (n *NotNode) appendCanonical(dst []byte) []byte {
	dst = append(dst, 'N')
	return n.child.appendCanonical(dst)
}

func (n *ExistsNode) appendCanonical(dst []byte) []byte {
	dst = append(dst, 'E')
	return appendString(dst, n.field)
}

func (n *CompareNode) appendCanonical(dst []byte) []byte {
	dst = append(dst, 'C', byte(n.op))
	dst = appendString(dst, n.field)
	return appendString(dst, n.value)
}

func (n *FuzzyNode) appendCanonical(dst []byte) []byte {
	dst = append(dst, 'F', byte(n.flags))
	dst = appendString(dst, n.field)
	return appendString(dst, n.value)
}

func appendString(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// String renders the tree for logs and debugging.
func String(n Node) string {
	var b strings.Builder
	writeString(&b, n)
	return b.String()
}

func writeString(b *strings.Builder, n Node) {
	switch t := n.(type) {
	case *AndNode:
		writeGroup(b, "and", t.children)
	case *OrNode:
		writeGroup(b, "or", t.children)
	case *NotNode:
		b.WriteString("not(")
		writeString(b, t.child)
		b.WriteByte(')')
	case *ExistsNode:
		fmt.Fprintf(b, "exists(%s)", t.field)
	case *CompareNode:
		fmt.Fprintf(b, "%s %s %q", t.field, t.op, t.value)
	case *FuzzyNode:
		fmt.Fprintf(b, "%s ~ %q", t.field, t.value)
	default:
		b.WriteString("?")
	}
}

func writeGroup(b *strings.Builder, op string, children []Node) {
	b.WriteString(op)
	b.WriteByte('(')
	for i, c := range children {
		if i > 0 {
			b.WriteString(", ")
		}
		writeString(b, c)
	}
	b.WriteByte(')')
}
