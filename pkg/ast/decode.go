package ast

import (
	"encoding/json"
	"fmt"
)

// DecodeChunk parses a JSON-encoded syntax tree into a Chunk. This is the
// module's stand-in for a real parser front-end: the compiler's contract is
// with the ast types above, not with any particular source syntax, and the
// JSON shape here exists only so cmd/wispc has something to feed the
// compiler without this module growing an actual lexer/parser. Every node
// is an object with a "node" discriminator field naming one of the
// constructors below.
func DecodeChunk(data []byte) (*Chunk, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var wrapper struct {
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	block, err := decodeBlock(wrapper.Body)
	if err != nil {
		return nil, err
	}
	return &Chunk{Body: block}, nil
}

func nodeTag(raw json.RawMessage) (string, error) {
	var tagged struct {
		Node string `json:"node"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return "", err
	}
	if tagged.Node == "" {
		return "", fmt.Errorf("ast node missing \"node\" discriminator: %s", raw)
	}
	return tagged.Node, nil
}

func decodeBlock(raw json.RawMessage) (Block, error) {
	var wire struct {
		Statements []json.RawMessage `json:"statements"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Block{}, fmt.Errorf("decode block: %w", err)
	}
	stmts := make([]Statement, len(wire.Statements))
	for i, s := range wire.Statements {
		st, err := decodeStatement(s)
		if err != nil {
			return Block{}, err
		}
		stmts[i] = st
	}
	return Block{Statements: stmts}, nil
}

func decodeStatement(raw json.RawMessage) (Statement, error) {
	tag, err := nodeTag(raw)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "if":
		var w struct {
			Clauses []struct {
				Cond json.RawMessage `json:"cond"`
				Body json.RawMessage `json:"body"`
			} `json:"clauses"`
			Else *json.RawMessage `json:"else"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		st := &IfStatement{}
		for _, c := range w.Clauses {
			cond, err := decodeExpression(c.Cond)
			if err != nil {
				return nil, err
			}
			body, err := decodeBlock(c.Body)
			if err != nil {
				return nil, err
			}
			st.Clauses = append(st.Clauses, IfClause{Cond: cond, Body: body})
		}
		if w.Else != nil {
			blk, err := decodeBlock(*w.Else)
			if err != nil {
				return nil, err
			}
			st.Else = &blk
		}
		return st, nil

	case "while":
		var w struct {
			Cond json.RawMessage `json:"cond"`
			Body json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		cond, err := decodeExpression(w.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &WhileStatement{Cond: cond, Body: body}, nil

	case "repeat":
		var w struct {
			Body json.RawMessage `json:"body"`
			Cond json.RawMessage `json:"cond"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		body, err := decodeBlock(w.Body)
		if err != nil {
			return nil, err
		}
		cond, err := decodeExpression(w.Cond)
		if err != nil {
			return nil, err
		}
		return &RepeatStatement{Body: body, Cond: cond}, nil

	case "do":
		var w struct {
			Body json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		body, err := decodeBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &DoStatement{Body: body}, nil

	case "numericFor":
		var w struct {
			Name  string           `json:"name"`
			Start json.RawMessage  `json:"start"`
			Limit json.RawMessage  `json:"limit"`
			Step  *json.RawMessage `json:"step"`
			Body  json.RawMessage  `json:"body"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		start, err := decodeExpression(w.Start)
		if err != nil {
			return nil, err
		}
		limit, err := decodeExpression(w.Limit)
		if err != nil {
			return nil, err
		}
		var step *Expression
		if w.Step != nil {
			se, err := decodeExpression(*w.Step)
			if err != nil {
				return nil, err
			}
			step = &se
		}
		body, err := decodeBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &NumericForStatement{Name: w.Name, Start: start, Limit: limit, Step: step, Body: body}, nil

	case "genericFor":
		var w struct {
			Names []string          `json:"names"`
			Exprs []json.RawMessage `json:"exprs"`
			Body  json.RawMessage   `json:"body"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		exprs, err := decodeExpressionList(w.Exprs)
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &GenericForStatement{Names: w.Names, Exprs: exprs, Body: body}, nil

	case "function":
		var w struct {
			Name   string          `json:"name"`
			Fields []string        `json:"fields"`
			Method *string         `json:"method"`
			Func   json.RawMessage `json:"func"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		fn, err := decodeFunctionExpression(w.Func)
		if err != nil {
			return nil, err
		}
		return &FunctionStatement{Name: w.Name, Fields: w.Fields, Method: w.Method, Func: fn}, nil

	case "localFunction":
		var w struct {
			Name string          `json:"name"`
			Func json.RawMessage `json:"func"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		fn, err := decodeFunctionExpression(w.Func)
		if err != nil {
			return nil, err
		}
		return &LocalFunctionStatement{Name: w.Name, Func: fn}, nil

	case "local":
		var w struct {
			Names  []string          `json:"names"`
			Values []json.RawMessage `json:"values"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		values, err := decodeExpressionList(w.Values)
		if err != nil {
			return nil, err
		}
		return &LocalStatement{Names: w.Names, Values: values}, nil

	case "assign":
		var w struct {
			Targets []json.RawMessage `json:"targets"`
			Values  []json.RawMessage `json:"values"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		targets := make([]AssignmentTarget, len(w.Targets))
		for i, t := range w.Targets {
			tgt, err := decodeAssignmentTarget(t)
			if err != nil {
				return nil, err
			}
			targets[i] = tgt
		}
		values, err := decodeExpressionList(w.Values)
		if err != nil {
			return nil, err
		}
		return &AssignmentStatement{Targets: targets, Values: values}, nil

	case "call":
		var w struct {
			Call json.RawMessage `json:"call"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		suffixed, err := decodeSuffixedExpression(w.Call)
		if err != nil {
			return nil, err
		}
		return &FunctionCallStatement{Call: suffixed}, nil

	case "label":
		var w struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &LabelStatement{Name: w.Name}, nil

	case "goto":
		var w struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &GotoStatement{Name: w.Name}, nil

	case "break":
		return &BreakStatement{}, nil

	case "return":
		var w struct {
			Exprs []json.RawMessage `json:"exprs"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		exprs, err := decodeExpressionList(w.Exprs)
		if err != nil {
			return nil, err
		}
		return &ReturnStatement{Exprs: exprs}, nil

	default:
		return nil, fmt.Errorf("unknown statement node %q", tag)
	}
}

func decodeExpressionList(raws []json.RawMessage) ([]Expression, error) {
	out := make([]Expression, len(raws))
	for i, r := range raws {
		e, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// decodeExpression accepts either the full {head, tail} shape or a bare head
// node (sugar for an empty tail), so fixtures can write literals directly
// without wrapping every leaf in an expression envelope.
func decodeExpression(raw json.RawMessage) (Expression, error) {
	var wire struct {
		Head json.RawMessage   `json:"head"`
		Tail []json.RawMessage `json:"tail"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Expression{}, err
	}
	headRaw := raw
	var tailRaws []json.RawMessage
	if wire.Head != nil {
		headRaw = wire.Head
		tailRaws = wire.Tail
	}
	head, err := decodeHeadExpression(headRaw)
	if err != nil {
		return Expression{}, err
	}
	tail := make([]BinOpTail, len(tailRaws))
	for i, t := range tailRaws {
		var tw struct {
			Op    string          `json:"op"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(t, &tw); err != nil {
			return Expression{}, err
		}
		op, err := decodeBinaryOperator(tw.Op)
		if err != nil {
			return Expression{}, err
		}
		right, err := decodeExpression(tw.Right)
		if err != nil {
			return Expression{}, err
		}
		tail[i] = BinOpTail{Op: op, Right: right}
	}
	return Expression{Head: head, Tail: tail}, nil
}

func decodeBinaryOperator(s string) (BinaryOperator, error) {
	ops := map[string]BinaryOperator{
		"+": OpAdd, "-": OpSub, "*": OpMul, "%": OpMod, "^": OpPow,
		"/": OpDiv, "//": OpIDiv, "&": OpBitAnd, "|": OpBitOr, "~": OpBitXor,
		"<<": OpShiftLeft, ">>": OpShiftRight, "..": OpConcat,
		"~=": OpNotEqual, "==": OpEqual, "<": OpLessThan, "<=": OpLessEqual,
		">": OpGreaterThan, ">=": OpGreaterEqual, "and": OpAnd, "or": OpOr,
	}
	op, ok := ops[s]
	if !ok {
		return 0, fmt.Errorf("unknown binary operator %q", s)
	}
	return op, nil
}

func decodeHeadExpression(raw json.RawMessage) (HeadExpression, error) {
	tag, err := nodeTag(raw)
	if err != nil {
		return nil, err
	}
	if tag == "not" || tag == "neg" || tag == "len" || tag == "bnot" {
		var w struct {
			Expr json.RawMessage `json:"expr"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		inner, err := decodeExpression(w.Expr)
		if err != nil {
			return nil, err
		}
		ops := map[string]UnaryOperator{"not": UnNot, "neg": UnNeg, "len": UnLen, "bnot": UnBitNot}
		return UnaryOpExpression{Op: ops[tag], Expr: inner}, nil
	}
	return decodeSimpleExpression(raw, tag)
}

func decodeSimpleExpression(raw json.RawMessage, tag string) (SimpleExpression, error) {
	switch tag {
	case "float":
		var w struct {
			Value float64 `json:"value"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return FloatExpression{Value: w.Value}, nil

	case "integer":
		var w struct {
			Value int64 `json:"value"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return IntegerExpression{Value: w.Value}, nil

	case "string":
		var w struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return StringExpression{Value: w.Value}, nil

	case "nil":
		return NilExpression{}, nil
	case "true":
		return TrueExpression{}, nil
	case "false":
		return FalseExpression{}, nil
	case "varargs":
		return VarArgsExpression{}, nil

	case "table":
		var w struct {
			Fields []struct {
				Key   *json.RawMessage `json:"key"`
				Value json.RawMessage  `json:"value"`
			} `json:"fields"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		fields := make([]TableField, len(w.Fields))
		for i, f := range w.Fields {
			val, err := decodeExpression(f.Value)
			if err != nil {
				return nil, err
			}
			tf := TableField{Value: val}
			if f.Key != nil {
				k, err := decodeExpression(*f.Key)
				if err != nil {
					return nil, err
				}
				tf.Key = &k
			}
			fields[i] = tf
		}
		return TableConstructorExpression{Fields: fields}, nil

	case "function":
		return decodeFunctionExpression(raw)

	case "suffixed":
		suf, err := decodeSuffixedExpression(raw)
		if err != nil {
			return nil, err
		}
		return SuffixedExpressionHead{Suffixed: suf}, nil

	default:
		return nil, fmt.Errorf("unknown expression node %q", tag)
	}
}

func decodeFunctionExpression(raw json.RawMessage) (FunctionExpression, error) {
	var w struct {
		Params     []string        `json:"params"`
		HasVarArgs bool            `json:"hasVarArgs"`
		Body       json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return FunctionExpression{}, err
	}
	body, err := decodeBlock(w.Body)
	if err != nil {
		return FunctionExpression{}, err
	}
	return FunctionExpression{Params: w.Params, HasVarArgs: w.HasVarArgs, Body: body}, nil
}

func decodePrimaryExpression(raw json.RawMessage, tag string) (PrimaryExpression, error) {
	switch tag {
	case "name":
		var w struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return NameExpression{Name: w.Name}, nil
	case "paren":
		var w struct {
			Inner json.RawMessage `json:"inner"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		inner, err := decodeExpression(w.Inner)
		if err != nil {
			return nil, err
		}
		return ParenExpression{Inner: inner}, nil
	default:
		return nil, fmt.Errorf("unknown primary expression node %q", tag)
	}
}

func decodeSuffixedExpression(raw json.RawMessage) (SuffixedExpression, error) {
	var w struct {
		Primary  json.RawMessage   `json:"primary"`
		Suffixes []json.RawMessage `json:"suffixes"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return SuffixedExpression{}, err
	}
	ptag, err := nodeTag(w.Primary)
	if err != nil {
		return SuffixedExpression{}, err
	}
	primary, err := decodePrimaryExpression(w.Primary, ptag)
	if err != nil {
		return SuffixedExpression{}, err
	}
	suffixes := make([]Suffix, len(w.Suffixes))
	for i, s := range w.Suffixes {
		suf, err := decodeSuffix(s)
		if err != nil {
			return SuffixedExpression{}, err
		}
		suffixes[i] = suf
	}
	return SuffixedExpression{Primary: primary, Suffixes: suffixes}, nil
}

func decodeSuffix(raw json.RawMessage) (Suffix, error) {
	tag, err := nodeTag(raw)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "field":
		var w struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return FieldSuffix{Name: w.Name}, nil
	case "index":
		var w struct {
			Key json.RawMessage `json:"key"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		key, err := decodeExpression(w.Key)
		if err != nil {
			return nil, err
		}
		return IndexSuffix{Key: key}, nil
	case "call":
		var w struct {
			Args []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		args, err := decodeExpressionList(w.Args)
		if err != nil {
			return nil, err
		}
		return CallSuffix{Args: args}, nil
	case "methodCall":
		var w struct {
			Method string            `json:"method"`
			Args   []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		args, err := decodeExpressionList(w.Args)
		if err != nil {
			return nil, err
		}
		return MethodCallSuffix{Method: w.Method, Args: args}, nil
	default:
		return nil, fmt.Errorf("unknown suffix node %q", tag)
	}
}

func decodeAssignmentTarget(raw json.RawMessage) (AssignmentTarget, error) {
	tag, err := nodeTag(raw)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "name":
		var w struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return NameTarget{Name: w.Name}, nil
	case "field":
		var w struct {
			Target json.RawMessage `json:"target"`
			Name   string          `json:"name"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		target, err := decodeExpression(w.Target)
		if err != nil {
			return nil, err
		}
		return FieldTarget{Target: target, Name: w.Name}, nil
	case "index":
		var w struct {
			Target json.RawMessage `json:"target"`
			Key    json.RawMessage `json:"key"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		target, err := decodeExpression(w.Target)
		if err != nil {
			return nil, err
		}
		key, err := decodeExpression(w.Key)
		if err != nil {
			return nil, err
		}
		return IndexTarget{Target: target, Key: key}, nil
	default:
		return nil, fmt.Errorf("unknown assignment target node %q", tag)
	}
}
