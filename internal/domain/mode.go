package domain

import (
	"fmt"
	"strings"
)

// Mode selects the execution path for a research request.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeWeb3   Mode = "web3"
	ModeRouter Mode = "router"
	ModeDemo   Mode = "demo"
)

// RequestModes lists every value a caller may ask for.
var RequestModes = []Mode{ModeAuto, ModeWeb3, ModeRouter, ModeDemo}

// ParseMode normalizes a caller-supplied mode. Empty input means auto.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeWeb3, ModeRouter, ModeDemo:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) String() string { return string(m) }
