// Package formula implements a labeled-tree Boolean formula model as a
// tagged-variant arena: a single closed Kind enum plus an indirection
// table of child indices removes the need for virtual dispatch or smart
// pointers that a naive interface-per-connective encoding would
// require, and lets identical subformulas share one arena slot.
package formula

import (
	"fmt"
	"strings"
	"sync"

	"github.com/polyrat/nra/pkg/nra/poly"
)

// Kind is one of the closed set of connectives a Formula node can carry.
// BOOL, BITVECTOR, UEQ and VARCOMPARE are opaque leaf kinds outside the
// nonlinear real/integer arithmetic core; the arena accepts them (so the
// tagged variant stays genuinely closed) but the module dispatcher
// (pkg/nra/dispatch) rejects them with ErrUnsupportedConstruct.
type Kind int

const (
	TRUE Kind = iota
	FALSE
	NOT
	AND
	OR
	XOR
	IFF
	IMPLIES
	ITE
	EXISTS
	FORALL
	CONSTRAINT
	BOOL
	BITVECTOR
	UEQ
	VARCOMPARE
)

func (k Kind) String() string {
	names := [...]string{"TRUE", "FALSE", "NOT", "AND", "OR", "XOR", "IFF", "IMPLIES", "ITE", "EXISTS", "FORALL", "CONSTRAINT", "BOOL", "BITVECTOR", "UEQ", "VARCOMPARE"}
	if int(k) < 0 || int(k) >= len(names) {
		return "UNKNOWN"
	}
	return names[k]
}

// ID is a stable 32-bit arena index. The zero value is never a valid
// non-arena-slot-0 ID in practice because slot 0 is always TRUE; callers
// that need an explicit "no formula" sentinel use ID(-1).
type ID int32

const Invalid ID = -1

// node is one arena slot: a tagged variant over Kind, holding whichever
// of Children/ConstraintRef/BoundVars/Label is meaningful for that Kind.
type node struct {
	kind         Kind
	children     []ID
	constraintID poly.ID
	boundVars    []poly.VarID
	label        string // payload for BOOL/BITVECTOR/UEQ/VARCOMPARE leaves
}

// Arena owns Formula storage; identical structure (kind + children +
// leaf payload) is shared under one ID, mirroring the hash-consing
// discipline of pkg/nra/poly.Pool: connective/children identity implies
// formula identity.
type Arena struct {
	mu       sync.RWMutex
	pool     *poly.Pool
	nodes    []node
	byKey    map[string]ID
	trueID   ID
	falseID  ID
}

// NewArena returns an empty Arena backed by the given polynomial pool.
func NewArena(pool *poly.Pool) *Arena {
	a := &Arena{pool: pool, byKey: map[string]ID{}}
	a.trueID = a.intern(node{kind: TRUE})
	a.falseID = a.intern(node{kind: FALSE})
	return a
}

// Pool returns the arena's backing polynomial/constraint pool.
func (a *Arena) Pool() *poly.Pool { return a.pool }

func keyOf(n node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%s|", n.kind, n.constraintID, n.label)
	for _, c := range n.children {
		fmt.Fprintf(&b, "%d,", c)
	}
	for _, v := range n.boundVars {
		fmt.Fprintf(&b, "v%d,", v)
	}
	return b.String()
}

func (a *Arena) intern(n node) ID {
	key := keyOf(n)
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.byKey[key]; ok {
		return id
	}
	id := ID(len(a.nodes))
	a.nodes = append(a.nodes, n)
	a.byKey[key] = id
	return id
}

func (a *Arena) at(id ID) node {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nodes[id]
}

// Kind returns the connective kind of id.
func (a *Arena) Kind(id ID) Kind { return a.at(id).kind }

// Children returns id's child formula ids (empty for leaves).
func (a *Arena) Children(id ID) []ID {
	n := a.at(id)
	out := make([]ID, len(n.children))
	copy(out, n.children)
	return out
}

// ConstraintOf returns the pooled Constraint a CONSTRAINT leaf refers to.
func (a *Arena) ConstraintOf(id ID) (*poly.Constraint, bool) {
	n := a.at(id)
	if n.kind != CONSTRAINT {
		return nil, false
	}
	c, ok := a.pool.ConstraintByID(n.constraintID)
	return c, ok
}

// BoundVars returns the quantified variables of an EXISTS/FORALL node.
func (a *Arena) BoundVars(id ID) []poly.VarID {
	n := a.at(id)
	out := make([]poly.VarID, len(n.boundVars))
	copy(out, n.boundVars)
	return out
}

// Label returns the opaque payload of a BOOL/BITVECTOR/UEQ/VARCOMPARE leaf.
func (a *Arena) Label(id ID) string { return a.at(id).label }

// True and False return the arena's canonical TRUE/FALSE ids.
func (a *Arena) True() ID  { return a.trueID }
func (a *Arena) False() ID { return a.falseID }

// Constraint wraps a pooled Constraint as a CONSTRAINT leaf.
func (a *Arena) Constraint(c *poly.Constraint) ID {
	return a.intern(node{kind: CONSTRAINT, constraintID: c.ID()})
}

// Not returns NOT(f), collapsing double negation and constant folding.
func (a *Arena) Not(f ID) ID {
	switch a.Kind(f) {
	case TRUE:
		return a.falseID
	case FALSE:
		return a.trueID
	case NOT:
		return a.Children(f)[0]
	}
	return a.intern(node{kind: NOT, children: []ID{f}})
}

// And returns AND(fs...), flattening no operands (each conjunct remains
// explicit so the equality-substitution preprocessor's linear-equality
// pass has a well-defined child list to walk).
func (a *Arena) And(fs ...ID) ID {
	return a.nary(AND, fs)
}

// Or returns OR(fs...).
func (a *Arena) Or(fs ...ID) ID {
	return a.nary(OR, fs)
}

func (a *Arena) nary(kind Kind, fs []ID) ID {
	ids := make([]ID, len(fs))
	copy(ids, fs)
	return a.intern(node{kind: kind, children: ids})
}

// Xor, Iff, Implies are binary connectives.
func (a *Arena) Xor(x, y ID) ID     { return a.intern(node{kind: XOR, children: []ID{x, y}}) }
func (a *Arena) Iff(x, y ID) ID     { return a.intern(node{kind: IFF, children: []ID{x, y}}) }
func (a *Arena) Implies(x, y ID) ID { return a.intern(node{kind: IMPLIES, children: []ID{x, y}}) }

// Ite returns ITE(cond, then, els).
func (a *Arena) Ite(cond, then, els ID) ID {
	return a.intern(node{kind: ITE, children: []ID{cond, then, els}})
}

// Exists and Forall bind vars over body.
func (a *Arena) Exists(vars []poly.VarID, body ID) ID {
	return a.intern(node{kind: EXISTS, children: []ID{body}, boundVars: append([]poly.VarID{}, vars...)})
}
func (a *Arena) Forall(vars []poly.VarID, body ID) ID {
	return a.intern(node{kind: FORALL, children: []ID{body}, boundVars: append([]poly.VarID{}, vars...)})
}

// OpaqueLeaf wraps an out-of-scope construct (BOOL/BITVECTOR/UEQ/VARCOMPARE)
// so the arena's connective set stays genuinely closed, even though the
// dispatcher refuses to decide it.
func (a *Arena) OpaqueLeaf(kind Kind, label string) ID {
	return a.intern(node{kind: kind, label: label})
}

// Walk calls visit(id) for id and, recursively, every descendant,
// pre-order, without repeating shared sub-DAG nodes.
func (a *Arena) Walk(id ID, visit func(ID)) {
	seen := map[ID]bool{}
	var rec func(ID)
	rec = func(cur ID) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		visit(cur)
		for _, c := range a.Children(cur) {
			rec(c)
		}
	}
	rec(id)
}

// String renders id for diagnostics.
func (a *Arena) String(id ID) string {
	n := a.at(id)
	switch n.kind {
	case TRUE:
		return "true"
	case FALSE:
		return "false"
	case CONSTRAINT:
		c, ok := a.ConstraintOf(id)
		if !ok {
			return "<dangling-constraint>"
		}
		return c.String()
	case NOT:
		return "not(" + a.String(n.children[0]) + ")"
	case AND, OR, XOR, IFF, IMPLIES:
		parts := make([]string, len(n.children))
		for i, c := range n.children {
			parts[i] = a.String(c)
		}
		sep := map[Kind]string{AND: " and ", OR: " or ", XOR: " xor ", IFF: " iff ", IMPLIES: " implies "}[n.kind]
		return "(" + strings.Join(parts, sep) + ")"
	case ITE:
		return fmt.Sprintf("ite(%s, %s, %s)", a.String(n.children[0]), a.String(n.children[1]), a.String(n.children[2]))
	case EXISTS, FORALL:
		q := "exists"
		if n.kind == FORALL {
			q = "forall"
		}
		return fmt.Sprintf("%s(.) %s", q, a.String(n.children[0]))
	default:
		return fmt.Sprintf("%s[%s]", n.kind, n.label)
	}
}
