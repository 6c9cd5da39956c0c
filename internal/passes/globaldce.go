package passes

import "ember/internal/ir"

// GlobalDCE removes functions and globals nothing reachable refers to.
// Reachability starts at the module's externally visible roots: entry points,
// the fallback handler and config decoders. From a live function, a call
// keeps its callee and a get_global keeps its global.
func GlobalDCE(cx *ir.Context, m ir.Module) (bool, error) {
	liveFns := make(map[ir.Function]struct{})
	liveGlobals := make(map[ir.GlobalVar]struct{})

	var stack []ir.Function
	for _, f := range cx.Mod(m).Functions {
		fd := cx.Func(f)
		if fd.Entry || fd.Fallback || fd.ConfigDecoder {
			liveFns[f] = struct{}{}
			stack = append(stack, f)
		}
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, b := range cx.Func(f).Blocks {
			for _, iv := range cx.Block(b).Insns {
				in, _ := cx.InsnOf(iv)
				switch in.Op {
				case ir.OpCall:
					if _, ok := liveFns[in.Callee]; !ok {
						liveFns[in.Callee] = struct{}{}
						stack = append(stack, in.Callee)
					}
				case ir.OpGetGlobal:
					liveGlobals[in.Global] = struct{}{}
				}
			}
		}
	}

	var deadFns []ir.Function
	for _, f := range cx.Mod(m).Functions {
		if _, ok := liveFns[f]; !ok {
			deadFns = append(deadFns, f)
		}
	}
	var deadGlobals []ir.GlobalVar
	for _, g := range cx.Mod(m).Globals {
		if _, ok := liveGlobals[g]; !ok {
			deadGlobals = append(deadGlobals, g)
		}
	}

	for _, f := range deadFns {
		cx.RemoveFunction(m, f)
	}
	for _, g := range deadGlobals {
		cx.RemoveGlobal(m, g)
	}
	return len(deadFns) > 0 || len(deadGlobals) > 0, nil
}
