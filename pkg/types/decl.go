package types

import (
	"fmt"
	"strings"
)

// Location points at the declaration of an alias.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	if l.Line == 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// AliasDecl is a type alias definition: type name[params] = Type.
type AliasDecl struct {
	Name     TypeName
	Params   []string
	Type     Type
	Location Location
}

func (d *AliasDecl) String() string {
	name := d.Name.String()
	if len(d.Params) > 0 {
		name += "[" + strings.Join(d.Params, ", ") + "]"
	}
	return "type " + name + " = " + d.Type.String()
}
