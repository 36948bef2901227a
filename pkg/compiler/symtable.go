package compiler

import (
	"fmt"
	"sort"
	"strings"
)

type SymbolKind int

const (
	SymProgram SymbolKind = iota
	SymVariable
	SymProcedure
	SymFunction
)

func (k SymbolKind) String() string {
	switch k {
	case SymProgram:
		return "program"
	case SymVariable:
		return "variable"
	case SymProcedure:
		return "procedure"
	case SymFunction:
		return "function"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// ValueType is the type of a variable or a function result.
type ValueType int

const (
	TypeNone ValueType = iota
	TypeInteger
	TypeBoolean
)

func (t ValueType) String() string {
	switch t {
	case TypeInteger:
		return "inteiro"
	case TypeBoolean:
		return "booleano"
	}
	return "none"
}

type Symbol struct {
	Name  string
	Kind  SymbolKind
	Type  ValueType
	Level int

	// Address is the static memory cell of a variable, or the result slot of
	// a function. Valid only when HasAddress is set.
	Address    int
	HasAddress bool

	Label string // entry label of a subroutine
}

// SymbolTable is a stack of scopes sharing one address counter. Closing a
// scope gives its addresses back so sibling subroutines reuse the same
// cells.
type SymbolTable struct {
	scopes []map[string]*Symbol
	// addressed counts the symbols in each scope that took an address.
	addressed []int
	next      int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		scopes:    []map[string]*Symbol{make(map[string]*Symbol)},
		addressed: []int{0},
	}
}

// Level is the depth of the innermost scope; the global scope is 0.
func (s *SymbolTable) Level() int {
	return len(s.scopes) - 1
}

// NextAddress is the address the next addressed declaration will get.
func (s *SymbolTable) NextAddress() int {
	return s.next
}

func (s *SymbolTable) EnterScope() {
	s.scopes = append(s.scopes, make(map[string]*Symbol))
	s.addressed = append(s.addressed, 0)
}

// ExitScope pops the innermost scope and reclaims its addresses. The global
// scope is never popped.
func (s *SymbolTable) ExitScope() {
	if len(s.scopes) == 1 {
		return
	}
	top := len(s.scopes) - 1
	s.next -= s.addressed[top]
	s.scopes = s.scopes[:top]
	s.addressed = s.addressed[:top]
}

// Declare adds a symbol to the innermost scope. Variables and functions get
// the next address. Declaring a name twice in one scope fails with
// ErrDuplicateSymbol.
func (s *SymbolTable) Declare(name string, kind SymbolKind, typ ValueType) (*Symbol, error) {
	top := len(s.scopes) - 1
	if _, exists := s.scopes[top][name]; exists {
		return nil, fmt.Errorf("%w: '%s'", ErrDuplicateSymbol, name)
	}
	sym := &Symbol{Name: name, Kind: kind, Type: typ, Level: top}
	if kind == SymVariable || kind == SymFunction {
		sym.Address = s.next
		sym.HasAddress = true
		s.next++
		s.addressed[top]++
	}
	s.scopes[top][name] = sym
	return sym, nil
}

// Resolve searches from the innermost scope outwards.
func (s *SymbolTable) Resolve(name string) (*Symbol, error) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if sym, ok := s.scopes[i][name]; ok {
			return sym, nil
		}
	}
	return nil, fmt.Errorf("%w: '%s'", ErrUndeclaredSymbol, name)
}

// String returns a deterministically ordered dump of the active scopes.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	for level, scope := range s.scopes {
		fmt.Fprintf(&sb, "Scope %d:\n", level)
		if len(scope) == 0 {
			sb.WriteString("  (empty)\n")
			continue
		}
		names := make([]string, 0, len(scope))
		for name := range scope {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sym := scope[name]
			fmt.Fprintf(&sb, "  %-20s  %-9s  %-8s", name, sym.Kind, sym.Type)
			if sym.HasAddress {
				fmt.Fprintf(&sb, "  addr %d", sym.Address)
			}
			if sym.Label != "" {
				fmt.Fprintf(&sb, "  label %s", sym.Label)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
