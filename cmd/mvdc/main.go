package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gomvd/pkg/compiler"
)

const testSource = `programa exemplo;
var x, y: inteiro;
inicio
  leia(x);
  y := x * 2 + 1;
  escreva(y)
fim.
`

// inspect prints every stage of compiling src to w and reports whether the
// compilation succeeded.
func inspect(w io.Writer, src string, showTokens, showScopes bool) bool {
	fmt.Fprintf(w, "Source:\n%s\n", src)

	if showTokens {
		tokens := compiler.Lex(src)
		fmt.Fprintf(w, "Tokens (%d)\n", len(tokens))
		for _, tok := range tokens {
			fmt.Fprintln(w, " ", tok)
		}
		fmt.Fprintln(w)
	}

	res, err := compiler.Compile(src)

	if showScopes {
		fmt.Fprintln(w, "Scopes")
		for _, s := range res.Scopes {
			fmt.Fprint(w, s)
		}
		fmt.Fprintln(w)
	}

	if err != nil {
		fmt.Fprintln(w, "Diagnostics")
		for _, d := range res.Diagnostics {
			fmt.Fprintln(w, " ", d)
		}
		if res.Suppressed > 0 {
			fmt.Fprintf(w, "  (%d more suppressed)\n", res.Suppressed)
		}
		return false
	}

	fmt.Fprintf(w, "Generated Bytecode (%d instructions)\n", len(res.Code))
	fmt.Fprint(w, res.Text)
	return true
}

func main() {
	noTokens := flag.Bool("no-tokens", false, "do not print the token stream")
	noScopes := flag.Bool("no-scopes", false, "do not print the symbol table dumps")
	flag.Parse()

	src := testSource
	if flag.NArg() > 0 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	if !inspect(os.Stdout, src, !*noTokens, !*noScopes) {
		os.Exit(1)
	}
}
