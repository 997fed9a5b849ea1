package session

// letters maps stimulus values 1..9 to the spoken letter.
var letters = [...]string{"A", "Z", "Q", "T", "R", "K", "W", "X", "I"}

// Letter returns the spoken letter for a stimulus, or "" when out of range.
func Letter(v int) string {
	if v < 1 || v > len(letters) {
		return ""
	}
	return letters[v-1]
}
