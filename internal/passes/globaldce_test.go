package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"ember/internal/ir"
	"ember/internal/irtext"
)

func TestGlobalDCERemovesUnreachableDefinitions(t *testing.T) {
	cx := ir.NewContext()
	mods, err := irtext.LowerString(cx, "fixture.eir", `module m {
  global used: u64 = 0:u64, mut
  global unused: u64 = 0:u64, mut

  fn main() -> u64, entry {
    entry:
      v0 = call helper()
      ret v0
  }

  fn helper() -> u64 {
    entry:
      v0 = get_global used
      v1 = load v0
      ret v1
  }

  fn orphan() -> u64 {
    entry:
      v0 = get_global unused
      v1 = load v0
      ret v1
  }
}
`)
	assert.NoError(t, err)
	m := mods[0]

	changed, err := GlobalDCE(cx, m)
	assert.NoError(t, err)
	assert.True(t, changed)

	md := cx.Mod(m)
	assert.Len(t, md.Functions, 2, "main keeps helper alive, orphan goes")
	assert.Equal(t, "main", cx.Func(md.Functions[0]).Name)
	assert.Equal(t, "helper", cx.Func(md.Functions[1]).Name)

	assert.Len(t, md.Globals, 1, "A global referenced only by a dead function dies with it")
	assert.Equal(t, "used", cx.Global(md.Globals[0]).Name)
}

func TestGlobalDCERootsFallbackAndConfigDecoder(t *testing.T) {
	cx := ir.NewContext()
	mods, err := irtext.LowerString(cx, "fixture.eir", `module m {
  fn on_call(), fallback {
    entry:
      ret
  }

  fn decode(), config_decoder {
    entry:
      ret
  }

  fn plain() {
    entry:
      ret
  }
}
`)
	assert.NoError(t, err)
	m := mods[0]

	changed, err := GlobalDCE(cx, m)
	assert.NoError(t, err)
	assert.True(t, changed)

	md := cx.Mod(m)
	assert.Len(t, md.Functions, 2, "Fallback and config decoder are reachability roots")
}

func TestGlobalDCENoChangeWhenEverythingReachable(t *testing.T) {
	cx := ir.NewContext()
	mods, err := irtext.LowerString(cx, "fixture.eir", `module m {
  fn main(), entry {
    entry:
      ret
  }
}
`)
	assert.NoError(t, err)

	changed, err := GlobalDCE(cx, mods[0])
	assert.NoError(t, err)
	assert.False(t, changed)
}
