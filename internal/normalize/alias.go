package normalize

// AliasTable maps a light-form name to its canonical light-form name. It is
// read-only once built and safe for concurrent use.
type AliasTable struct {
	aliases map[string]string
}

// NewAliasTable builds a table from raw pairs. Both sides are passed
// through Light so lookups match regardless of how the file was written.
// Pairs that normalize to an empty key or to themselves are dropped.
func NewAliasTable(raw map[string]string) *AliasTable {
	t := &AliasTable{aliases: make(map[string]string, len(raw))}
	for from, to := range raw {
		f, c := Light(from), Light(to)
		if f == "" || c == "" || f == c {
			continue
		}
		t.aliases[f] = c
	}
	return t
}

// Apply returns the canonical form of light, or light unchanged when no
// alias exists. Substitution is a single exact-match step.
func (t *AliasTable) Apply(light string) string {
	if t == nil {
		return light
	}
	if c, ok := t.aliases[light]; ok {
		return c
	}
	return light
}

// Len returns the number of aliases.
func (t *AliasTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.aliases)
}

// Canonical returns the aliased light form of raw.
func (t *AliasTable) Canonical(raw string) string {
	return t.Apply(Light(raw))
}
