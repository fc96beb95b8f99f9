package room

// DefaultTab is assumed for connections that have not advertised an
// active tab yet.
const DefaultTab = 1

// TabCounts recomputes tab viewer counts wholesale from every
// connection's advertised state. The input is small (bounded by
// concurrent connections per room), so no incremental bookkeeping.
func TabCounts(states map[string]int) map[int]int {
	counts := make(map[int]int)
	for _, tab := range states {
		if tab < 1 {
			tab = DefaultTab
		}
		counts[tab]++
	}
	return counts
}
