package registry

// EnableState is the per-kind enable/disable membership document:
// every registered path appears in exactly one of Enabled or Disabled.
type EnableState struct {
	Enabled  []string `json:"enabled"`
	Disabled []string `json:"disabled"`
}

// IsEnabled reports whether path is in the enabled list.
func (s *EnableState) IsEnabled(path string) bool {
	for _, p := range s.Enabled {
		if p == path {
			return true
		}
	}
	return false
}

// IsKnown reports whether path appears in either list.
func (s *EnableState) IsKnown(path string) bool {
	return s.IsEnabled(path) || s.contains(s.Disabled, path)
}

// AddDisabled inserts path into Disabled if not already present in
// either list. Used when a new entity is registered or discovered on
// disk without a state entry.
func (s *EnableState) AddDisabled(path string) {
	if s.IsKnown(path) {
		return
	}
	s.Disabled = append(s.Disabled, path)
}

// Toggle moves path to Enabled (enabled=true) or Disabled
// (enabled=false). Idempotent: toggling to the state path is already in
// is a no-op.
func (s *EnableState) Toggle(path string, enabled bool) {
	s.Enabled = remove(s.Enabled, path)
	s.Disabled = remove(s.Disabled, path)
	if enabled {
		s.Enabled = append(s.Enabled, path)
	} else {
		s.Disabled = append(s.Disabled, path)
	}
}

// Remove deletes path from both lists (used on entity deletion).
func (s *EnableState) Remove(path string) {
	s.Enabled = remove(s.Enabled, path)
	s.Disabled = remove(s.Disabled, path)
}

func (s *EnableState) contains(list []string, path string) bool {
	for _, p := range list {
		if p == path {
			return true
		}
	}
	return false
}

func remove(list []string, path string) []string {
	out := list[:0:0]
	for _, p := range list {
		if p != path {
			out = append(out, p)
		}
	}
	return out
}
