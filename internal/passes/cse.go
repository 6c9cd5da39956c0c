package passes

import (
	"fmt"
	"strings"

	"ember/internal/analysis"
	"ember/internal/ir"
)

// CSEPass merges instructions and phis that provably compute the same value,
// rewriting later occurrences to reuse an earlier dominating one.
var CSEPass = Pass{
	Name:        "cse",
	Description: "value-numbering common-subexpression elimination",
	Needs:       []AnalysisKind{NeedPostOrder, NeedDomTree},
	Run:         runCSE,
}

// vnTop is the optimistic "not yet resolved" number every value starts with.
const vnTop = 0

type valueNumbering struct {
	cx   *ir.Context
	vn   map[ir.Value]int
	uniq map[ir.Value]int // per-value stable numbers: class anchors and unobservable results
	next int

	// Constants are numbered by content: hash buckets resolved by structural
	// equality, since two constant handles can carry equal content.
	constBuckets map[uint64][]constEntry
}

type constEntry struct {
	con *ir.Constant
	num int
}

func newValueNumbering(cx *ir.Context) *valueNumbering {
	return &valueNumbering{
		cx:           cx,
		vn:           make(map[ir.Value]int),
		uniq:         make(map[ir.Value]int),
		constBuckets: make(map[uint64][]constEntry),
	}
}

func (n *valueNumbering) fresh() int {
	n.next++
	return n.next
}

func (n *valueNumbering) uniqueFor(v ir.Value) int {
	if num, ok := n.uniq[v]; ok {
		return num
	}
	num := n.fresh()
	n.uniq[v] = num
	return num
}

func (n *valueNumbering) constNumber(c *ir.Constant) int {
	h := c.Hash()
	for _, e := range n.constBuckets[h] {
		if e.con.Equal(c) {
			return e.num
		}
	}
	num := n.fresh()
	n.constBuckets[h] = append(n.constBuckets[h], constEntry{con: c, num: num})
	return num
}

// numberOf is the operand view: constants by content, everything else by its
// current number, defaulting to Top.
func (n *valueNumbering) numberOf(v ir.Value) int {
	if c, ok := n.cx.ConstOf(v); ok {
		return n.constNumber(c)
	}
	return n.vn[v]
}

func runCSE(cx *ir.Context, fn ir.Function, a *Analyses) (bool, error) {
	n := newValueNumbering(cx)
	rpo := a.PostOrder().Reverse()

	// Function arguments are opaque inputs: each gets its own number up front.
	for _, arg := range cx.Func(fn).Args {
		n.vn[arg] = n.uniqueFor(arg)
	}

	n.converge(fn, rpo)

	classes := n.partition(fn, rpo)
	repl := n.replacements(classes, a.DomTree())
	return cx.ReplaceValues(fn, repl), nil
}

// converge iterates full reverse-post-order sweeps until no value changes
// its number; a single sweep is not enough in the presence of loop back
// edges.
func (n *valueNumbering) converge(fn ir.Function, rpo []ir.Block) {
	entry := n.cx.EntryBlock(fn)
	for {
		changed := false
		table := make(map[string]int)
		for _, b := range rpo {
			if b != entry {
				for _, arg := range n.cx.Block(b).Args {
					if n.numberPhi(b, arg, table) {
						changed = true
					}
				}
			}
			for _, iv := range n.cx.Block(b).Insns {
				if n.numberInsn(iv, table) {
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

// numberPhi numbers one block argument from the numbers flowing in over each
// predecessor edge. If all incoming numbers agree — Top acting as an identity
// any concrete number absorbs — the phi collapses to that number instead of
// forming a class of its own; this is what prunes the redundant phis mem2reg
// leaves behind.
func (n *valueNumbering) numberPhi(b ir.Block, arg ir.Value, table map[string]int) bool {
	ad, ok := n.cx.ArgOf(arg)
	if !ok {
		return false
	}
	var incoming []int
	for _, pred := range n.cx.Block(b).Preds {
		tv, ok := n.cx.Terminator(pred)
		if !ok {
			continue
		}
		tin, _ := n.cx.InsnOf(tv)
		for _, tgt := range []*ir.BranchTarget{&tin.Dest, &tin.True, &tin.False} {
			if tgt.Block == b && ad.Index < len(tgt.Args) {
				incoming = append(incoming, n.numberOf(tgt.Args[ad.Index]))
			}
		}
	}

	merged := vnTop
	uniform := true
	for _, num := range incoming {
		if num == vnTop {
			continue
		}
		if merged == vnTop {
			merged = num
		} else if merged != num {
			uniform = false
			break
		}
	}

	var num int
	if uniform {
		num = merged
	} else {
		// The block is part of the key: phis in different blocks select
		// their incoming value under different conditions, so matching
		// number vectors alone do not make them congruent.
		key := fmt.Sprintf("(phi %d %s)", b, joinNums(incoming))
		num = n.classFor(arg, key, table)
	}
	return n.assign(arg, num)
}

func (n *valueNumbering) numberInsn(iv ir.Value, table map[string]int) bool {
	in, _ := n.cx.InsnOf(iv)
	if in.Ty == nil || in.Unobservable() {
		// Calls, loads, stores, asm and control flow have unobservable or
		// non-deterministic results: always a fresh, stable number, never a
		// congruence class.
		return n.assign(iv, n.uniqueFor(iv))
	}
	return n.assign(iv, n.classFor(iv, n.exprKey(in), table))
}

// classFor looks the structural key up in this sweep's table. On a miss the
// class is anchored to its first member's own stable number, never to the
// number the member happens to carry: a phi that collapsed onto an incoming
// number in an earlier sweep must migrate to a class of its own the moment it
// stops being uniform, or expressions over the phi stay falsely congruent
// with expressions over that incoming value.
func (n *valueNumbering) classFor(v ir.Value, key string, table map[string]int) int {
	if num, ok := table[key]; ok {
		return num
	}
	num := n.uniqueFor(v)
	table[key] = num
	return num
}

func (n *valueNumbering) assign(v ir.Value, num int) bool {
	if n.vn[v] == num {
		return false
	}
	n.vn[v] = num
	return true
}

// exprKey renders the instruction as its opcode tag plus operand numbers.
// Commutative operations sort their two operands so that a+b and b+a land in
// the same class.
func (n *valueNumbering) exprKey(in *ir.InsnData) string {
	nums := make([]int, len(in.Args))
	for i, a := range in.Args {
		nums[i] = n.numberOf(a)
	}
	switch in.Op {
	case ir.OpBinary:
		switch in.Binary {
		case ir.BinAdd, ir.BinMul, ir.BinAnd, ir.BinOr, ir.BinXor:
			if nums[0] > nums[1] {
				nums[0], nums[1] = nums[1], nums[0]
			}
		}
		return fmt.Sprintf("(bin:%d %s)", in.Binary, joinNums(nums))
	case ir.OpUnary:
		return fmt.Sprintf("(un:%d %s)", in.Unary, joinNums(nums))
	case ir.OpCmp:
		switch in.Cmp {
		case ir.CmpEq, ir.CmpNe:
			if nums[0] > nums[1] {
				nums[0], nums[1] = nums[1], nums[0]
			}
		}
		return fmt.Sprintf("(cmp:%d %s)", in.Cmp, joinNums(nums))
	case ir.OpGetLocal:
		return fmt.Sprintf("(local:%d)", in.Local)
	case ir.OpGetGlobal:
		return fmt.Sprintf("(global:%d)", in.Global)
	case ir.OpGetElemPtr:
		return fmt.Sprintf("(gep:%s %s)", in.Ty, joinNums(nums))
	case ir.OpCastPtr:
		return fmt.Sprintf("(cast:%s %s)", in.Ty, joinNums(nums))
	case ir.OpIntToPtr:
		return fmt.Sprintf("(i2p:%s %s)", in.Ty, joinNums(nums))
	}
	return fmt.Sprintf("(op:%d %s)", in.Op, joinNums(nums))
}

func joinNums(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, " ")
}

// partition groups non-constant values by converged number into congruence
// classes, in deterministic traversal order.
func (n *valueNumbering) partition(fn ir.Function, rpo []ir.Block) [][]ir.Value {
	byNum := make(map[int][]ir.Value)
	var order []int
	record := func(v ir.Value) {
		num := n.vn[v]
		if num == vnTop {
			return
		}
		if _, ok := byNum[num]; !ok {
			order = append(order, num)
		}
		byNum[num] = append(byNum[num], v)
	}
	for _, b := range rpo {
		for _, arg := range n.cx.Block(b).Args {
			record(arg)
		}
		for _, iv := range n.cx.Block(b).Insns {
			record(iv)
		}
	}

	var classes [][]ir.Value
	for _, num := range order {
		if members := byNum[num]; len(members) > 1 {
			classes = append(classes, members)
		}
	}
	return classes
}

// replacements picks, within each congruence class, the dominating member for
// every pair: if v1 dominates v2 at instruction granularity, all uses of v2
// become v1. A member dominating none of its class-mates is left untouched.
func (n *valueNumbering) replacements(classes [][]ir.Value, dt *analysis.DomTree) map[ir.Value]ir.Value {
	repl := make(map[ir.Value]ir.Value)
	for _, members := range classes {
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				v1, v2 := members[i], members[j]
				if _, done := repl[v2]; !done && analysis.ValueDominates(n.cx, dt, v1, v2) {
					repl[v2] = v1
					continue
				}
				if _, done := repl[v1]; !done && analysis.ValueDominates(n.cx, dt, v2, v1) {
					repl[v1] = v2
				}
			}
		}
	}
	return repl
}
