package ir

import "fmt"

// NodeID identifies a node within one Graph. IDs are dense indices into
// Graph.Nodes, assigned in creation order.
type NodeID int

// NoNode is the absent-node sentinel.
const NoNode NodeID = -1

// LoopID identifies a recursion loop within one Graph.
type LoopID int

// NoLoop is the absent-loop sentinel.
const NoLoop LoopID = -1

// OpKind identifies the operation a node performs.
type OpKind uint8

const (
	OpInvalid OpKind = iota

	// OpVar is a declared input stream. Name and Ann are set.
	OpVar

	// OpConst is a literal Singleton stream. Val is set.
	OpConst

	// OpEps is the empty stream introduction.
	OpEps

	// OpCat concatenates Args[0] followed by Args[1].
	OpCat

	// OpBound is a variable bound by an eliminator: one projection of a
	// Concat split, one branch binding of a Case or StarCase, or one
	// element binding of a Zip body. Origin names the eliminated node
	// and Role says which binding this is.
	OpBound

	// OpInjL injects Args[0] as the left side of a Sum. Ann holds the
	// full Sum type.
	OpInjL

	// OpInjR injects Args[0] as the right side of a Sum. Ann holds the
	// full Sum type.
	OpInjR

	// OpCase eliminates the Sum Args[0]. Branches[0] is the left arm,
	// Branches[1] the right arm; both arms must produce equal types.
	OpCase

	// OpNil is the empty Star introduction. Ann holds the Star type.
	OpNil

	// OpCons prepends element Args[0] to the Star Args[1].
	OpCons

	// OpStarCase eliminates the Star Args[0]. Branches[0] is the nil
	// arm (no bindings), Branches[1] the cons arm (head and tail
	// bindings). Loop names the recursion loop opened by this node,
	// NoLoop when the cons arm does not recurse.
	OpStarCase

	// OpRec re-enters the loop Loop with Args[0] as the new scrutinee.
	// Ann holds the loop's result type. Valid only inside the cons arm
	// of the StarCase that opened the loop.
	OpRec

	// OpZip pairwise combines the Stars Args[0] and Args[1]. Branches[0]
	// is the body, binding one element of each side; evaluating two
	// stars of unequal length is a runtime error.
	OpZip

	// OpBuffer materializes Args[0] so it can be read out of declared
	// order. Every buffer must be released exactly once.
	OpBuffer

	// OpRelease reads back the buffered stream Args[0].
	OpRelease
)

// String returns the canonical name of the op kind.
func (k OpKind) String() string {
	switch k {
	case OpVar:
		return "var"
	case OpConst:
		return "const"
	case OpEps:
		return "eps"
	case OpCat:
		return "cat"
	case OpBound:
		return "bound"
	case OpInjL:
		return "inl"
	case OpInjR:
		return "inr"
	case OpCase:
		return "case"
	case OpNil:
		return "nil"
	case OpCons:
		return "cons"
	case OpStarCase:
		return "starcase"
	case OpRec:
		return "rec"
	case OpZip:
		return "zip"
	case OpBuffer:
		return "buffer"
	case OpRelease:
		return "release"
	default:
		return "invalid"
	}
}

// Role distinguishes the bindings an eliminator introduces.
type Role uint8

const (
	RoleNone Role = iota

	// RoleCatFst and RoleCatSnd are the two projections of a Concat
	// split. Fst must be fully consumed before Snd.
	RoleCatFst
	RoleCatSnd

	// RoleCaseLeft and RoleCaseRight are the payload bindings of the
	// two Case arms.
	RoleCaseLeft
	RoleCaseRight

	// RoleConsHead and RoleConsTail are the bindings of a StarCase cons
	// arm.
	RoleConsHead
	RoleConsTail

	// RoleZipLeft and RoleZipRight are the element bindings of a Zip
	// body.
	RoleZipLeft
	RoleZipRight
)

// String returns the canonical name of the role.
func (r Role) String() string {
	switch r {
	case RoleCatFst:
		return "fst"
	case RoleCatSnd:
		return "snd"
	case RoleCaseLeft:
		return "case-left"
	case RoleCaseRight:
		return "case-right"
	case RoleConsHead:
		return "head"
	case RoleConsTail:
		return "tail"
	case RoleZipLeft:
		return "zip-left"
	case RoleZipRight:
		return "zip-right"
	default:
		return "none"
	}
}

// Branch is one arm of a branching node. Bound lists the OpBound nodes
// the arm introduces, in binding order. Exit is the node whose stream
// the arm produces. Lo and Hi delimit the half-open NodeID range
// [Lo, Hi) of nodes created while building the arm; the checker uses
// the range to decide which consumptions belong to which arm.
type Branch struct {
	Bound []NodeID
	Exit  NodeID
	Lo    NodeID
	Hi    NodeID
}

// Contains reports whether id was created inside the arm.
func (b Branch) Contains(id NodeID) bool { return id >= b.Lo && id < b.Hi }

// LoopMeta describes one recursion loop.
type LoopMeta struct {
	// StarCase is the node that opened the loop.
	StarCase NodeID

	// Scrutinee is the Star stream the loop destructs.
	Scrutinee NodeID

	// NilExit is the nil arm's exit node. Its type is the loop's result
	// type, which every OpRec in the cons arm must match.
	NilExit NodeID
}

// Node is one operation of a dataflow graph. Nodes are immutable once
// appended except for branch backpatching performed by the builder
// before Finish.
type Node struct {
	ID   NodeID
	Kind OpKind

	// Args are the streams the node consumes, in consumption order.
	Args []NodeID

	// Origin and Role are set on OpBound nodes only.
	Origin NodeID
	Role   Role

	// Val is set on OpConst nodes only.
	Val Value

	// Name is set on OpVar nodes only.
	Name string

	// Loop is set on OpStarCase (the loop it opens, or NoLoop) and on
	// OpRec (the loop it re-enters).
	Loop LoopID

	// Branches are the arms of OpCase, OpStarCase, and OpZip nodes.
	Branches []Branch

	// Ann is a builder-supplied type annotation. Set on OpVar, OpInjL,
	// OpInjR, OpNil, and OpRec; the checker verifies it everywhere and
	// infers all other node types.
	Ann Type
}

// Graph is an immutable dataflow graph over ordered streams. Once
// Finish has been called on the builder that produced it, a Graph is
// never mutated; evaluation and checking only read it.
type Graph struct {
	// Nodes in creation order; Nodes[i].ID == NodeID(i).
	Nodes []Node

	// Inputs are the OpVar nodes in declaration order. Declaration
	// order is the order token sequences must respect.
	Inputs []NodeID

	// Output is the node whose stream the graph produces.
	Output NodeID

	// Loops indexed by LoopID.
	Loops []LoopMeta
}

// Append adds a node, assigns its ID, and returns it.
func (g *Graph) Append(n Node) NodeID {
	n.ID = NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, n)
	return n.ID
}

// Valid reports whether id names a node of this graph.
func (g *Graph) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.Nodes)
}

// Node returns the node with the given id. Panics on an id from another
// graph; callers hold handles, not raw integers, so this indicates a
// programming error rather than bad input.
func (g *Graph) Node(id NodeID) *Node {
	if !g.Valid(id) {
		panic(fmt.Sprintf("ir: node %d out of range (graph has %d nodes)", id, len(g.Nodes)))
	}
	return &g.Nodes[id]
}

// InputTypes returns the declared types of the inputs, in declaration
// order.
func (g *Graph) InputTypes() []Type {
	ts := make([]Type, len(g.Inputs))
	for i, id := range g.Inputs {
		ts[i] = g.Nodes[id].Ann
	}
	return ts
}

// InputIndex returns the declaration index of the input named name, or
// -1 when no input has that name.
func (g *Graph) InputIndex(name string) int {
	for i, id := range g.Inputs {
		if g.Nodes[id].Name == name {
			return i
		}
	}
	return -1
}

// Loop returns the loop metadata for id.
func (g *Graph) Loop(id LoopID) LoopMeta {
	if id < 0 || int(id) >= len(g.Loops) {
		panic(fmt.Sprintf("ir: loop %d out of range (graph has %d loops)", id, len(g.Loops)))
	}
	return g.Loops[id]
}

// TypedGraph is a Graph together with the per-node types assigned by a
// successful check. Only the checker constructs one; holding a
// TypedGraph is the proof obligation both evaluation backends require.
type TypedGraph struct {
	Graph *Graph

	// Types indexed by NodeID.
	Types []Type
}

// TypeOf returns the checked type of id.
func (tg *TypedGraph) TypeOf(id NodeID) Type { return tg.Types[id] }

// OutputType returns the checked type of the graph's output stream.
func (tg *TypedGraph) OutputType() Type { return tg.Types[tg.Graph.Output] }
