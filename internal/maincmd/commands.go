package maincmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mna/mainer"

	"wisp/pkg/ast"
	"wisp/pkg/compiler"
)

// readInput reads path, or stdin when path is "-".
func readInput(stdio mainer.Stdio, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdio.Stdin)
	}
	return os.ReadFile(path)
}

func loadChunk(stdio mainer.Stdio, args []string) (*ast.Chunk, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("a path argument is required")
	}
	data, err := readInput(stdio, args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	chunk, err := ast.DecodeChunk(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", args[0], err)
	}
	return chunk, nil
}

// Compile implements the "compile" subcommand: it compiles the chunk and
// reports either success (with top-level stack/constant/upvalue counts) or
// the structured compiler error.
func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	chunk, err := loadChunk(stdio, args)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	proto, err := compiler.CompileChunk(chunk)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "compile error: %s\n", err)
		return err
	}
	fmt.Fprintf(stdio.Stdout, "ok: stack=%d constants=%d upvalues=%d opcodes=%d prototypes=%d\n",
		proto.StackSize, len(proto.Constants), len(proto.Upvalues), len(proto.Opcodes), len(proto.Prototypes))
	return nil
}

// Disasm implements the "disasm" subcommand: it compiles the chunk and
// prints a full recursive opcode listing.
func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	chunk, err := loadChunk(stdio, args)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	proto, err := compiler.CompileChunk(chunk)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "compile error: %s\n", err)
		return err
	}
	compiler.Disassemble(stdio.Stdout, proto, "main")
	return nil
}
