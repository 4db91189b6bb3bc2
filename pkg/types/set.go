package types

// NameSet is a set of type names.
type NameSet map[TypeName]struct{}

// NewNameSet returns a set holding names.
func NewNameSet(names ...TypeName) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts name.
func (s NameSet) Add(name TypeName) {
	s[name] = struct{}{}
}

// Has reports whether name is a member.
func (s NameSet) Has(name TypeName) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of members.
func (s NameSet) Len() int {
	return len(s)
}

// Clone returns an independent copy.
func (s NameSet) Clone() NameSet {
	out := make(NameSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// Slice returns the members sorted by name.
func (s NameSet) Slice() []TypeName {
	out := make([]TypeName, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	SortNames(out)
	return out
}

// Strings returns the sorted members as strings.
func (s NameSet) Strings() []string {
	names := s.Slice()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.String()
	}
	return out
}
