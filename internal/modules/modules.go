// Package modules defines the SAMS admission modules the pipeline covers and
// the academic-year window each module has data for.
package modules

import (
	"fmt"
	"strings"
)

// Module is one SAMS admission stream.
type Module string

const (
	ITI     Module = "ITI"
	Diploma Module = "Diploma"
	PDIS    Module = "PDIS"
)

// All lists the supported modules in pipeline order.
func All() []Module {
	return []Module{ITI, Diploma, PDIS}
}

// Parse maps a user-supplied module name to a Module.
func Parse(s string) (Module, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "iti":
		return ITI, nil
	case "diploma":
		return Diploma, nil
	case "pdis", "postdiploma", "post-diploma":
		return PDIS, nil
	}
	return "", fmt.Errorf("unknown module %q", s)
}

// Window is an inclusive academic-year range.
type Window struct {
	Min int
	Max int
}

// Years returns the academic-year window the portal has data for.
func (m Module) Years() Window {
	switch m {
	case ITI:
		return Window{Min: 2017, Max: 2024}
	case Diploma:
		return Window{Min: 2018, Max: 2024}
	case PDIS:
		return Window{Min: 2020, Max: 2024}
	}
	return Window{}
}

// Key is the lowercase form used in dataset names ("iti_enrollments").
func (m Module) Key() string { return strings.ToLower(string(m)) }

func (m Module) String() string { return string(m) }
