package tools

import (
	"bytes"
	"go/parser"
	"go/scanner"
	"go/token"
)

// Check parses Go source and prints its syntax errors the way the compiler
// does, one "file:line:col: msg" per line. A file that parses yields nil.
func Check(filename, data string) []byte {
	_, err := parser.ParseFile(token.NewFileSet(), filename, data, parser.AllErrors)
	if err == nil {
		return nil
	}
	var buf bytes.Buffer
	scanner.PrintError(&buf, err)
	return buf.Bytes()
}
