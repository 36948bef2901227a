package compiler

import (
	"fmt"
	"strconv"

	"gomvd/pkg/asm"
	"gomvd/pkg/vm"
)

// Item is one element of an expression in infix or postfix order. Sym is set
// for identifiers; Unary marks a prefix + or -.
type Item struct {
	Tok   Token
	Unary bool
	Sym   *Symbol
}

func (it Item) String() string {
	if it.Unary {
		return it.Tok.Lexeme + "u"
	}
	return it.Tok.Lexeme
}

func isOperand(tt TokenType) bool {
	switch tt {
	case IDENTIFIER, NUMBER, VERDADEIRO, FALSO:
		return true
	}
	return false
}

func isOperator(tt TokenType) bool {
	switch tt {
	case PLUS, MINUS, STAR, DIV, E, OU, NAO:
		return true
	}
	return tt.IsRelational()
}

// precedence is lower for tighter binding.
func precedence(it Item) int {
	if it.Unary {
		return 0
	}
	switch it.Tok.Type {
	case STAR, DIV:
		return 1
	case PLUS, MINUS:
		return 2
	case NAO:
		return 4
	case E:
		return 5
	case OU:
		return 6
	}
	if it.Tok.Type.IsRelational() {
		return 3
	}
	return 7
}

func isPrefix(it Item) bool {
	return it.Unary || it.Tok.Type == NAO
}

// ToPostfix converts an infix item sequence with the shunting-yard method.
// A + or - is tagged unary when nothing, '(' or another operator comes
// before it.
func ToPostfix(infix []Item) ([]Item, error) {
	var out, ops []Item
	var prev *Item

	for i := range infix {
		it := infix[i]
		tt := it.Tok.Type
		if (tt == PLUS || tt == MINUS) && (prev == nil || prev.Tok.Type == LPAREN || isOperator(prev.Tok.Type)) {
			it.Unary = true
		}
		prev = &infix[i]

		switch {
		case isOperand(tt):
			out = append(out, it)
		case tt == LPAREN:
			ops = append(ops, it)
		case tt == RPAREN:
			for len(ops) > 0 && ops[len(ops)-1].Tok.Type != LPAREN {
				out = append(out, ops[len(ops)-1])
				ops = ops[:len(ops)-1]
			}
			if len(ops) == 0 {
				return nil, fmt.Errorf("%w: unbalanced ')'", ErrMalformedExpression)
			}
			ops = ops[:len(ops)-1]
		case isPrefix(it):
			ops = append(ops, it)
		case isOperator(tt):
			p := precedence(it)
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.Tok.Type == LPAREN || precedence(top) > p {
					break
				}
				out = append(out, top)
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, it)
		default:
			return nil, fmt.Errorf("%w: unexpected '%s'", ErrMalformedExpression, it.Tok.Lexeme)
		}
	}

	for len(ops) > 0 {
		top := ops[len(ops)-1]
		if top.Tok.Type == LPAREN {
			return nil, fmt.Errorf("%w: unbalanced '('", ErrMalformedExpression)
		}
		out = append(out, top)
		ops = ops[:len(ops)-1]
	}
	return out, nil
}

// TypeOf type-checks a postfix sequence and returns its result type.
func TypeOf(postfix []Item) (ValueType, error) {
	var stack []ValueType

	pop := func(want ValueType, op Item) error {
		if len(stack) == 0 {
			return fmt.Errorf("%w: missing operand for '%s'", ErrMalformedExpression, op)
		}
		got := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if got != want {
			return fmt.Errorf("%w: '%s' expects %s, got %s", ErrTypeMismatch, op, want, got)
		}
		return nil
	}

	for _, it := range postfix {
		tt := it.Tok.Type
		switch {
		case tt == NUMBER:
			stack = append(stack, TypeInteger)
		case tt == VERDADEIRO || tt == FALSO:
			stack = append(stack, TypeBoolean)
		case tt == IDENTIFIER:
			if it.Sym == nil || it.Sym.Type == TypeNone {
				return TypeNone, fmt.Errorf("%w: '%s' has no value", ErrTypeMismatch, it.Tok.Lexeme)
			}
			stack = append(stack, it.Sym.Type)
		case it.Unary:
			if err := pop(TypeInteger, it); err != nil {
				return TypeNone, err
			}
			stack = append(stack, TypeInteger)
		case tt == NAO:
			if err := pop(TypeBoolean, it); err != nil {
				return TypeNone, err
			}
			stack = append(stack, TypeBoolean)
		default:
			operand, result := TypeInteger, TypeInteger
			switch {
			case tt == E || tt == OU:
				operand, result = TypeBoolean, TypeBoolean
			case tt.IsRelational():
				result = TypeBoolean
			}
			// Right operand is on top.
			if err := pop(operand, it); err != nil {
				return TypeNone, err
			}
			if err := pop(operand, it); err != nil {
				return TypeNone, err
			}
			stack = append(stack, result)
		}
	}

	if len(stack) != 1 {
		return TypeNone, fmt.Errorf("%w: %d values left on the type stack", ErrMalformedExpression, len(stack))
	}
	return stack[0], nil
}

var binaryOps = map[TokenType]vm.Op{
	PLUS:       vm.OpADD,
	MINUS:      vm.OpSUB,
	STAR:       vm.OpMULT,
	DIV:        vm.OpDIVI,
	E:          vm.OpAND,
	OU:         vm.OpOR,
	LESS:       vm.OpCME,
	GREATER:    vm.OpCMA,
	EQUALS:     vm.OpCEQ,
	NOT_EQ:     vm.OpCDIF,
	LESS_EQ:    vm.OpCMEQ,
	GREATER_EQ: vm.OpCMAQ,
}

// Emit writes code for a type-checked postfix sequence. A function operand
// is called and its result slot loaded.
func Emit(postfix []Item, e *Emitter) error {
	for _, it := range postfix {
		tt := it.Tok.Type
		switch {
		case tt == NUMBER:
			n, err := strconv.Atoi(it.Tok.Lexeme)
			if err != nil {
				return fmt.Errorf("%w: number '%s' out of range", ErrMalformedExpression, it.Tok.Lexeme)
			}
			e.Emit(vm.OpLDC, asm.Num(n))
		case tt == VERDADEIRO:
			e.Emit(vm.OpLDC, asm.Num(1))
		case tt == FALSO:
			e.Emit(vm.OpLDC, asm.Num(0))
		case tt == IDENTIFIER:
			if it.Sym.Kind == SymFunction {
				e.Emit(vm.OpCALL, asm.Ref(it.Sym.Label))
			}
			e.Emit(vm.OpLDV, asm.Num(it.Sym.Address))
		case it.Unary && tt == MINUS:
			e.Emit(vm.OpINV)
		case it.Unary:
			// unary plus is the identity
		case tt == NAO:
			e.Emit(vm.OpNEG)
		default:
			op, ok := binaryOps[tt]
			if !ok {
				return fmt.Errorf("%w: no instruction for '%s'", ErrMalformedExpression, it)
			}
			e.Emit(op)
		}
	}
	return nil
}

// Check converts infix to postfix and type-checks it.
func Check(infix []Item) ([]Item, ValueType, error) {
	postfix, err := ToPostfix(infix)
	if err != nil {
		return nil, TypeNone, err
	}
	typ, err := TypeOf(postfix)
	if err != nil {
		return nil, TypeNone, err
	}
	return postfix, typ, nil
}
