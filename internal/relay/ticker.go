package relay

// ticker turns chunk counts into a coarse, monotonic percent.
// With a known size the percent follows the byte ratio, otherwise it
// advances one point per tick. It never reaches 100.
type ticker struct {
	every    int
	expected int64
	chunks   int
	percent  int
}

func newTicker(every int, expected *int64) *ticker {
	t := &ticker{every: every}
	if expected != nil && *expected > 0 {
		t.expected = *expected
	}
	return t
}

// chunk counts one forwarded chunk and reports a new percent on every
// tick boundary.
func (t *ticker) chunk(bytes int64) (int, bool) {
	t.chunks++
	if t.chunks%t.every != 0 {
		return 0, false
	}

	next := t.percent + 1
	if t.expected > 0 {
		next = int(bytes * 100 / t.expected)
	}
	if next > 99 {
		next = 99
	}
	if next > t.percent {
		t.percent = next
	}
	return t.percent, true
}
