package compiler

// VariableKind tags a VariableDescriptor's variant.
type VariableKind uint8

const (
	VarLocal VariableKind = iota
	VarUpValue
	VarGlobal
)

// VariableDescriptor is the result of resolving a name: a local register in
// the current function, an upvalue index in the current function, or (no
// binding found anywhere) a global, to be looked up on the environment
// table by name.
type VariableDescriptor struct {
	Kind     VariableKind
	Register Register
	UpValue  int
	Name     string
}

// chainFromOutermost returns the enclosing-function chain from outermost
// (index 0) to fs itself (the last index), which is the order find_variable
// needs to walk: outward while searching, then back inward while building
// the upvalue chain.
func (fs *funcState) chainFromOutermost() []*funcState {
	var reversed []*funcState
	for f := fs; f != nil; f = f.enclosing {
		reversed = append(reversed, f)
	}
	chain := make([]*funcState, len(reversed))
	for i, f := range reversed {
		chain[len(reversed)-1-i] = f
	}
	return chain
}

// propagateUpvalue records `first` as a new upvalue of chain[start], then
// threads an Outer(...) reference through every function from start+1 up to
// and including chain[current], returning the final index (the one visible
// in chain[current]).
func propagateUpvalue(chain []*funcState, start, current int, name string, first UpValueDescriptor) (int, error) {
	idx, err := chain[start].addUpvalue(name, first)
	if err != nil {
		return 0, err
	}
	for k := start + 1; k <= current; k++ {
		idx, err = chain[k].addUpvalue(name, UpValueDescriptor{Kind: UpOuter, Outer: idx})
		if err != nil {
			return 0, err
		}
	}
	return idx, nil
}

// findVariable is the core upvalue-chain resolution algorithm: it searches
// outward from the current function for a local binding, marking every
// intervening block's owns_upvalues bit before a single further opcode is
// emitted, then threads a ParentLocal/Outer upvalue chain back inward. If no
// local is found anywhere, it falls back to searching each function's
// existing upvalue list (which is how a lazily-created _ENV upvalue at the
// outermost function gets reused and chained inward on later lookups), and
// finally to Global.
func (fs *funcState) findVariable(name string) (VariableDescriptor, error) {
	chain := fs.chainFromOutermost()
	current := len(chain) - 1

	for i := current; i >= 0; i-- {
		f := chain[i]
		if reg, ok := f.symbols.Resolve(name); ok {
			if i == current {
				return VariableDescriptor{Kind: VarLocal, Register: reg, Name: name}, nil
			}
			// Every block still open in f either encloses the local's
			// declaring block (StackBottom <= reg) or lies between that block
			// and the capture site; all of them are marked.
			for b := len(f.blocks) - 1; b >= 0; b-- {
				f.blocks[b].OwnsUpvalues = true
			}
			idx, err := propagateUpvalue(chain, i+1, current, name, UpValueDescriptor{
				Kind: UpParentLocal, Register: reg,
			})
			if err != nil {
				return VariableDescriptor{}, err
			}
			return VariableDescriptor{Kind: VarUpValue, UpValue: idx, Name: name}, nil
		}
	}

	if len(chain[0].upvalues) == 0 && name == "_ENV" {
		if _, err := chain[0].addUpvalue("_ENV", UpValueDescriptor{Kind: UpEnvironment}); err != nil {
			return VariableDescriptor{}, err
		}
	}

	for i := current; i >= 0; i-- {
		f := chain[i]
		for u, uname := range f.upvalNames {
			if uname != name {
				continue
			}
			if i == current {
				return VariableDescriptor{Kind: VarUpValue, UpValue: u, Name: name}, nil
			}
			idx, err := propagateUpvalue(chain, i+1, current, name, UpValueDescriptor{
				Kind: UpOuter, Outer: u,
			})
			if err != nil {
				return VariableDescriptor{}, err
			}
			return VariableDescriptor{Kind: VarUpValue, UpValue: idx, Name: name}, nil
		}
	}

	return VariableDescriptor{Kind: VarGlobal, Name: name}, nil
}

// getEnvironment resolves the implicit _ENV binding, which is always either
// a Local (only possible in a pathological function that shadows _ENV as a
// parameter) or an UpValue; it can never itself resolve to Global.
func (fs *funcState) getEnvironment() (VariableDescriptor, error) {
	return fs.findVariable("_ENV")
}
