package rel

// schema helpers. Schemas are ordered slices of unique column names;
// order is significant everywhere, so set operations preserve the
// order of their first argument.

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func containsString(s []string, name string) bool {
	for _, c := range s {
		if c == name {
			return true
		}
	}
	return false
}

// intersect returns the elements of a that also occur in b, in a's order.
func intersect(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, c := range b {
		inB[c] = true
	}
	var out []string
	for _, c := range a {
		if inB[c] {
			out = append(out, c)
		}
	}
	return out
}

// subtract returns the elements of a not present in b, in a's order.
func subtract(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, c := range b {
		inB[c] = true
	}
	var out []string
	for _, c := range a {
		if !inB[c] {
			out = append(out, c)
		}
	}
	return out
}

// checkUnique returns the first duplicated name, if any.
func checkUnique(cols []string) (string, bool) {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			return c, true
		}
		seen[c] = true
	}
	return "", false
}
