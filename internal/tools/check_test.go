package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	assert.Nil(t, Check("ok.go", "package ok\n\nfunc F() {}\n"))

	out := string(Check("bad.go", "package bad\n\nfunc F() {\n\treturn 1 +\n}\n"))
	assert.Regexp(t, `^bad\.go:5:1: `, out)
}

func TestCheck_AllErrors(t *testing.T) {
	out := string(Check("bad.go", "package bad\nvar a = )\nvar b = )\n"))
	assert.Contains(t, out, "bad.go:2:9:")
	assert.Contains(t, out, "bad.go:3:9:")
}
