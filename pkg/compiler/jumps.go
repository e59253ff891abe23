package compiler

import cerrors "wisp/pkg/errors"

// JumpLabelKind tags a JumpLabel's variant.
type JumpLabelKind uint8

const (
	JumpUnique JumpLabelKind = iota
	JumpNamed
	JumpBreak
)

// JumpLabel identifies a jump's destination: a compiler-synthesized id, a
// source `::name::` label, or the implicit per-loop break target.
type JumpLabel struct {
	Kind JumpLabelKind
	ID   uint64
	Name string
}

func (a JumpLabel) equals(b JumpLabel) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case JumpUnique:
		return a.ID == b.ID
	case JumpNamed:
		return a.Name == b.Name
	case JumpBreak:
		return true
	default:
		return false
	}
}

// BlockDescriptor marks the register-stack and jump-target state at the
// point a lexical block was entered, so it can be torn down correctly on
// exit.
type BlockDescriptor struct {
	StackBottom      Register
	BottomJumpTarget int
	OwnsUpvalues     bool
}

// JumpTarget records an instruction position a jump may resolve to.
type JumpTarget struct {
	Label       JumpLabel
	Instruction int
	StackTop    Register
	BlockIndex  int
}

// PendingJump records an emitted placeholder jump whose target is not yet
// known.
type PendingJump struct {
	Label         JumpLabel
	Instruction   int
	BlockIndex    int
	StackTop      Register
	CloseUpvalues bool
}

func jumpOffset(source, target int) (int16, bool) {
	var delta int
	if target > source {
		delta = target - (source + 1)
	} else {
		delta = -((source + 1) - target)
	}
	if delta < -32768 || delta > 32767 {
		return 0, false
	}
	return int16(delta), true
}

// uniqueJumpLabel returns a fresh compiler-synthesized label, used for
// control structures (if/while/for) that need jump targets with no source
// name.
func (fs *funcState) uniqueJumpLabel() JumpLabel {
	id := fs.uniqueJumpCounter
	fs.uniqueJumpCounter++
	return JumpLabel{Kind: JumpUnique, ID: id}
}

// enterBlock pushes a new lexical scope marker.
func (fs *funcState) enterBlock() {
	fs.blocks = append(fs.blocks, &BlockDescriptor{
		StackBottom:      fs.regs.StackTop(),
		BottomJumpTarget: len(fs.jumpTargets),
	})
}

// exitBlock pops the current lexical scope: locals declared in it are
// freed in reverse order, its jump targets are dropped, and any pending
// jump that might still target a label inside it is re-anchored onto the
// enclosing block so a later jump_target call there can still resolve it
// (carrying forward whether it must close upvalues).
func (fs *funcState) exitBlock() {
	n := len(fs.blocks) - 1
	block := fs.blocks[n]
	fs.blocks = fs.blocks[:n]

	for fs.symbols.Count() > 0 && fs.symbols.At(fs.symbols.Count()-1).Register >= block.StackBottom {
		fs.regs.Free(fs.symbols.At(fs.symbols.Count() - 1).Register)
		fs.symbols.TruncateTo(fs.symbols.Count() - 1)
	}

	if len(fs.jumpTargets) > block.BottomJumpTarget {
		fs.jumpTargets = fs.jumpTargets[:block.BottomJumpTarget]
	}

	if block.OwnsUpvalues && len(fs.blocks) > 0 {
		fs.emit(Jump{Offset: 0, CloseUpvalues: SomeOpt254(block.StackBottom)})
	}

	for i := len(fs.pendingJumps) - 1; i >= 0; i-- {
		pj := &fs.pendingJumps[i]
		if pj.BlockIndex < len(fs.blocks) {
			break
		}
		pj.BlockIndex = len(fs.blocks) - 1
		pj.StackTop = fs.regs.StackTop()
		pj.CloseUpvalues = pj.CloseUpvalues || block.OwnsUpvalues
	}
}

// jump emits a jump to label: a backward jump resolves immediately against
// an already-seen target; a forward jump emits a placeholder and records a
// PendingJump for jumpTarget to patch later.
func (fs *funcState) jump(label JumpLabel) error {
	currentTop := fs.regs.StackTop()
	currentBlock := len(fs.blocks) - 1

	for i := len(fs.jumpTargets) - 1; i >= 0; i-- {
		jt := fs.jumpTargets[i]
		if !jt.Label.equals(label) {
			continue
		}

		needsClose := jt.StackTop < currentTop
		if needsClose {
			needsClose = false
			for b := jt.BlockIndex; b <= currentBlock; b++ {
				if fs.blocks[b].OwnsUpvalues {
					needsClose = true
					break
				}
			}
		}

		offset, ok := jumpOffset(len(fs.opcodes), jt.Instruction)
		if !ok {
			return cerrors.New(cerrors.JumpOverflow)
		}
		close := NoneOpt254()
		if needsClose {
			close = SomeOpt254(jt.StackTop)
		}
		fs.emit(Jump{Offset: offset, CloseUpvalues: close})
		return nil
	}

	inst := fs.emit(Jump{Offset: 0, CloseUpvalues: NoneOpt254()})
	fs.pendingJumps = append(fs.pendingJumps, PendingJump{
		Label:       label,
		Instruction: inst,
		BlockIndex:  currentBlock,
		StackTop:    currentTop,
	})
	return nil
}

// jumpTarget records a target for label at the current instruction and
// resolves every pending jump in the current block that matches it.
func (fs *funcState) jumpTarget(label JumpLabel) error {
	return fs.jumpTargetAt(label, fs.regs.StackTop())
}

// jumpTargetAt is jumpTarget with an explicit stack-top to record/check
// against, rather than the register allocator's actual current top. A
// trailing run of labels at the end of a block is placed at the block's
// StackBottom rather than its real (higher) stack top, so a goto issued
// before a local declared earlier in the same block is still legal: the
// label is logically outside the lifetime of that block's own locals, per
// the trailing-labels scoping rule.
func (fs *funcState) jumpTargetAt(label JumpLabel, stackTop Register) error {
	targetInst := len(fs.opcodes)
	currentTop := stackTop
	currentBlock := len(fs.blocks) - 1

	for i := len(fs.jumpTargets) - 1; i >= 0; i-- {
		jt := fs.jumpTargets[i]
		if jt.BlockIndex < currentBlock {
			break
		}
		if jt.Label.equals(label) {
			return cerrors.New(cerrors.DuplicateLabel)
		}
	}

	fs.jumpTargets = append(fs.jumpTargets, JumpTarget{
		Label:       label,
		Instruction: targetInst,
		StackTop:    currentTop,
		BlockIndex:  currentBlock,
	})

	kept := fs.pendingJumps[:0]
	var resolving []PendingJump
	for _, pj := range fs.pendingJumps {
		if pj.BlockIndex == currentBlock && pj.Label.equals(label) {
			resolving = append(resolving, pj)
		} else {
			kept = append(kept, pj)
		}
	}
	fs.pendingJumps = kept

	for _, pj := range resolving {
		if pj.StackTop < currentTop {
			return cerrors.New(cerrors.JumpLocal)
		}
		j, ok := fs.opcodes[pj.Instruction].(Jump)
		if !ok || j.Offset != 0 || !j.CloseUpvalues.IsNone() {
			panic("compiler: jump instruction is not a placeholder")
		}
		offset, ok := jumpOffset(pj.Instruction, targetInst)
		if !ok {
			return cerrors.New(cerrors.JumpOverflow)
		}
		close := NoneOpt254()
		if pj.CloseUpvalues {
			close = SomeOpt254(currentTop)
		}
		fs.opcodes[pj.Instruction] = Jump{Offset: offset, CloseUpvalues: close}
	}

	return nil
}
