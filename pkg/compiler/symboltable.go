package compiler

// Symbol is a declared local variable: a name bound to a register within
// the function currently being compiled.
type Symbol struct {
	Name     string
	Register Register
}

// SymbolTable tracks the locals declared so far in one function, in
// declaration order. A single per-function slice suffices: block scoping
// within a function is handled by jumps.go's BlockDescriptor stack (which
// records how far to truncate on block exit) rather than by nested
// tables.
type SymbolTable struct {
	locals []Symbol
}

// NewSymbolTable creates an empty table for a new function scope.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// Declare registers a new local in the current (innermost) scope.
func (st *SymbolTable) Declare(name string, reg Register) {
	st.locals = append(st.locals, Symbol{Name: name, Register: reg})
}

// Resolve looks up name among the declared locals, most-recently-declared
// first, so shadowing within a function resolves to the innermost binding.
func (st *SymbolTable) Resolve(name string) (Register, bool) {
	for i := len(st.locals) - 1; i >= 0; i-- {
		if st.locals[i].Name == name {
			return st.locals[i].Register, true
		}
	}
	return 0, false
}

// Count returns the number of locals currently declared.
func (st *SymbolTable) Count() int { return len(st.locals) }

// TruncateTo keeps the first n locals and drops the rest (used on block exit,
// where exited locals are popped in reverse declaration order alongside
// their registers).
func (st *SymbolTable) TruncateTo(n int) {
	st.locals = st.locals[:n]
}

// At returns the symbol at index i.
func (st *SymbolTable) At(i int) Symbol { return st.locals[i] }
