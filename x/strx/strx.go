package strx

// Coalesce returns s if non-empty, otherwise d.
func Coalesce(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

// IsBlank reports whether s contains only spaces, tabs, CR or LF.
func IsBlank(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}
