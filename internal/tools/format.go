package tools

import (
	"errors"
	"go/format"

	gofumpt "mvdan.cc/gofumpt/format"
)

type FormattingOption int

const (
	Gofmt FormattingOption = iota
	Gofumpt
)

// Format formats Go source. modulePath lets gofumpt group local imports.
func Format(data string, opt FormattingOption, modulePath string) ([]byte, error) {
	switch opt {
	case Gofmt:
		return RunGofmt(data)
	case Gofumpt:
		return RunGofumpt(data, modulePath)
	default:
		return nil, errors.New("tcpls: invalid formatting option")
	}
}

func RunGofmt(data string) ([]byte, error) {
	return format.Source([]byte(data))
}

func RunGofumpt(data, modulePath string) ([]byte, error) {
	return gofumpt.Source([]byte(data), gofumpt.Options{ModulePath: modulePath})
}
