package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"ember/internal/ir"
	"ember/internal/irtext"
)

func TestAnalysesAreCachedPerFunction(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f() {
    entry:
      ret
  }
}
`)
	p := NewEmptyPipeline(cx)
	a1 := p.analysesFor(fn)
	a2 := p.analysesFor(fn)
	assert.Same(t, a1, a2, "Repeated requests share one cache entry")

	po1 := a1.PostOrder()
	assert.Same(t, po1, a1.PostOrder(), "Unchanged IR reuses the computed analysis")

	a1.invalidate()
	assert.NotSame(t, po1, a1.PostOrder(), "Invalidation forces a recomputation")
}

func TestPipelineStopsAtFixedPoint(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f(a: u64) -> u64 {
    entry:
      ret a
  }
}
`)
	p := NewPipeline(cx)
	changed, err := p.RunFunction(fn)
	assert.NoError(t, err)
	assert.False(t, changed, "Already-minimal IR reports no change")
}

func TestPipelineEndToEnd(t *testing.T) {
	cx := ir.NewContext()
	mods, err := irtext.LowerString(cx, "fixture.eir", `module m {
  global limit: u64 = 100:u64

  fn check(n: u64) -> bool, entry {
    entry:
      v0 = get_global limit
      v1 = load v0
      v2 = cmp lt n, v1
      ret v2
  }

  fn orphan() {
    entry:
      ret
  }
}
`)
	assert.NoError(t, err)
	m := mods[0]

	p := NewPipeline(cx)
	changed, err := p.RunModule(m)
	assert.NoError(t, err)
	assert.True(t, changed)

	expected := `module m {
  fn check(n: u64) -> bool, entry {
    entry:
      v0 = cmp lt n, 100:u64
      ret v0
  }
}
`
	assert.Equal(t, expected, ir.PrintModule(cx, m))
}

func TestPipelinePromotesAndCleansDiamond(t *testing.T) {
	cx := ir.NewContext()
	mods, err := irtext.LowerString(cx, "fixture.eir", `module m {
  fn pick(c: bool) -> u64, entry {
    local x: u64

    entry:
      v0 = get_local x
      store 10:u64, v0
      cbr c, yes(), no()

    yes:
      v1 = get_local x
      store 20:u64, v1
      br join()

    no:
      br join()

    join:
      v2 = get_local x
      v3 = load v2
      ret v3
  }
}
`)
	assert.NoError(t, err)
	m := mods[0]

	p := NewPipeline(cx)
	changed, err := p.RunModule(m)
	assert.NoError(t, err)
	assert.True(t, changed)

	expected := `module m {
  fn pick(c: bool) -> u64, entry {
    entry:
      cbr c, yes(), no()

    yes:
      br join(20:u64)

    no:
      br join(10:u64)

    join(x.0: u64):
      ret x.0
  }
}
`
	assert.Equal(t, expected, ir.PrintModule(cx, m))
}

func TestPipelineCollapsesRedundantPhi(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f(c: bool) -> u64 {
    local x: u64 = 7:u64

    entry:
      cbr c, yes(), no()

    yes:
      br join()

    no:
      br join()

    join:
      v0 = get_local x
      v1 = load v0
      ret v1
  }
}
`)
	p := NewPipeline(cx)
	changed, err := p.RunFunction(fn)
	assert.NoError(t, err)
	assert.True(t, changed)

	out := ir.PrintFunction(cx, fn)
	assert.Contains(t, out, "ret 7:u64", "The load reads the initializer on every path")
	assert.Contains(t, out, "join():", "No phi survives when every input agrees")
}

func TestPipelineRespectsCustomPassList(t *testing.T) {
	cx, _, fn := loadFunction(t, `module m {
  fn f() -> u64 {
    local x: u64

    entry:
      v0 = get_local x
      store 1:u64, v0
      v1 = get_local x
      v2 = load v1
      ret v2
  }
}
`)
	p := NewEmptyPipeline(cx)
	p.Add(Mem2RegPass)
	assert.Len(t, p.Passes(), 1)

	changed, err := p.RunFunction(fn)
	assert.NoError(t, err)
	assert.True(t, changed)

	out := ir.PrintFunction(cx, fn)
	assert.Contains(t, out, "get_local x", "Without the cleanup pass the dead addresses remain")
	assert.Contains(t, out, "ret 1:u64")
}
