package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"ember/internal/ir"
)

func TestDCERemovesUnusedValueChain(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f(a: u64) -> u64 {
    entry:
      v0 = add a, a
      v1 = mul v0, v0
      ret a
  }
}
`)
	changed, err := DCEPass.Run(cx, fn, newAnalyses(cx, fn))
	assert.NoError(t, err)
	assert.True(t, changed)

	entry := cx.EntryBlock(fn)
	assert.Len(t, cx.Block(entry).Insns, 1, "Both dead instructions cascade away")
	assert.Contains(t, ir.PrintFunction(cx, fn), "ret a")
}

func TestDCERemovesDeadStoreAndLocal(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f() -> u64 {
    local x: u64

    entry:
      v0 = get_local x
      store 5:u64, v0
      ret 9:u64
  }
}
`)
	changed, err := DCEPass.Run(cx, fn, newAnalyses(cx, fn))
	assert.NoError(t, err)
	assert.True(t, changed)

	out := ir.PrintFunction(cx, fn)
	assert.NotContains(t, out, "store")
	assert.NotContains(t, out, "get_local")
	assert.Empty(t, cx.Func(fn).Locals, "A local with no remaining references is dropped")
}

func TestDCEStoreDiesAfterItsLastLoad(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f() -> u64 {
    local x: u64

    entry:
      v0 = get_local x
      store 5:u64, v0
      v1 = get_local x
      v2 = load v1
      ret 3:u64
  }
}
`)
	changed, err := DCEPass.Run(cx, fn, newAnalyses(cx, fn))
	assert.NoError(t, err)
	assert.True(t, changed)

	entry := cx.EntryBlock(fn)
	assert.Len(t, cx.Block(entry).Insns, 1,
		"The dead load unlocks the store, which unlocks the addresses")
	assert.Empty(t, cx.Func(fn).Locals)
}

func TestDCEKeepsStoreToEscapedLocal(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f() {
    local x: u64

    entry:
      v0 = get_local x
      v1 = call sink(v0)
      store 5:u64, v0
      ret
  }

  fn sink(p: ptr u64) {
    entry:
      ret
  }
}
`)
	changed, err := DCEPass.Run(cx, fn, newAnalyses(cx, fn))
	assert.NoError(t, err)
	assert.False(t, changed)

	out := ir.PrintFunction(cx, fn)
	assert.Contains(t, out, "store 5:u64", "Stores to escaped locals are observable")
	assert.Len(t, cx.Func(fn).Locals, 1)
}

func TestDCEKeepsGlobalStore(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  global g: u64 = 0:u64, mut

  fn f() {
    entry:
      v0 = get_global g
      store 5:u64, v0
      ret
  }
}
`)
	changed, err := DCEPass.Run(cx, fn, newAnalyses(cx, fn))
	assert.NoError(t, err)
	assert.False(t, changed, "Global state outlives the function")
	assert.Contains(t, ir.PrintFunction(cx, fn), "store 5:u64")
}

func TestDCEPrunesUnreachableBlocks(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f() {
    entry:
      br out()

    island:
      br out()

    out:
      ret
  }
}
`)
	changed, err := DCEPass.Run(cx, fn, newAnalyses(cx, fn))
	assert.NoError(t, err)
	assert.True(t, changed)

	fd := cx.Func(fn)
	assert.Len(t, fd.Blocks, 2)
	out := fd.Blocks[1]
	assert.Len(t, cx.Block(out).Preds, 1, "The pruned block leaves no stale predecessor edge")
}

func TestDCETrimsDeadBlockArgument(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f(c: bool) -> u64 {
    entry:
      cbr c, yes(), no()

    yes:
      br join(1:u64)

    no:
      br join(2:u64)

    join(r: u64):
      ret 0:u64
  }
}
`)
	changed, err := DCEPass.Run(cx, fn, newAnalyses(cx, fn))
	assert.NoError(t, err)
	assert.True(t, changed)

	out := ir.PrintFunction(cx, fn)
	assert.Contains(t, out, "join():", "The unused argument disappears from the block")
	assert.Contains(t, out, "br join()", "Both incoming edges drop the matching actual")
}

func TestDCEKeepsFunctionArguments(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f(a: u64, b: u64) -> u64 {
    entry:
      ret a
  }
}
`)
	changed, err := DCEPass.Run(cx, fn, newAnalyses(cx, fn))
	assert.NoError(t, err)
	assert.False(t, changed, "Unused formals stay, the signature is the caller's contract")
	assert.Len(t, cx.Func(fn).Args, 2)
}

func TestDCEKeepsSideEffects(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f() {
    entry:
      v0 = call noisy()
      v1 = asm "log0" () -> u64
      ret
  }

  fn noisy() -> u64 {
    entry:
      ret 1:u64
  }
}
`)
	changed, err := DCEPass.Run(cx, fn, newAnalyses(cx, fn))
	assert.NoError(t, err)
	assert.False(t, changed)

	out := ir.PrintFunction(cx, fn)
	assert.Contains(t, out, "call noisy()", "Calls stay even when their result is unused")
	assert.Contains(t, out, `asm "log0"`)
}

func TestDCECorruptBranchActualsIsFatal(t *testing.T) {
	cx := ir.NewContext()
	m := cx.CreateModule("m")
	u64 := &ir.IntType{Bits: 64}
	fn := cx.CreateFunction(m, "f", u64)
	a := cx.AddFunctionArg(fn, "a", u64)

	entry := cx.EntryBlock(fn)
	join := cx.CreateBlock(fn, "join")
	cx.AddBlockArg(join, "r", u64)

	// The branch carries no actual for r, so the edge has lost index
	// correspondence and removing the dead argument cannot succeed.
	cx.BuildAt(entry).Br(join)
	cx.BuildAt(join).Ret(a)

	_, err := DCEPass.Run(cx, fn, newAnalyses(cx, fn))
	assert.Error(t, err)
}
