package motif

import "sort"

// Mapping links motif IDs to the regulators that bind them.
type Mapping map[string][]string

// Add records that motif is bound by regulator. Duplicates are ignored.
func (m Mapping) Add(motifID, regulator string) {
	for _, r := range m[motifID] {
		if r == regulator {
			return
		}
	}
	m[motifID] = append(m[motifID], regulator)
}

// FromCatalog maps each motif to the name in its header (JASPAR convention).
func FromCatalog(catalog []PFM) Mapping {
	m := Mapping{}
	for _, p := range catalog {
		m.Add(p.ID, p.Name)
	}
	return m
}

// Motifs returns the mapped motif IDs in sorted order.
func (m Mapping) Motifs() []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Regulators returns the distinct mapped regulators in sorted order.
func (m Mapping) Regulators() []string {
	seen := map[string]struct{}{}
	for _, regs := range m {
		for _, r := range regs {
			seen[r] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Restrict returns a new mapping keeping only the given regulators and
// motifs accepted by keep. An empty regulator list keeps every regulator.
func (m Mapping) Restrict(regulators []string, keep func(motifID string) bool) Mapping {
	allow := map[string]struct{}{}
	for _, r := range regulators {
		allow[r] = struct{}{}
	}
	out := Mapping{}
	for id, regs := range m {
		if keep != nil && !keep(id) {
			continue
		}
		for _, r := range regs {
			if _, ok := allow[r]; ok || len(allow) == 0 {
				out.Add(id, r)
			}
		}
	}
	for id := range out {
		sort.Strings(out[id])
	}
	return out
}
