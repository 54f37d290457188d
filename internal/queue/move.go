package queue

// Move returns a copy of items with the element at from removed and
// reinserted at to. Elements in between shift by one. When from equals to
// or either index is out of range the copy is unchanged.
func Move[T any](items []T, from, to int) []T {
	out := make([]T, len(items))
	copy(out, items)
	if from == to || from < 0 || to < 0 || from >= len(items) || to >= len(items) {
		return out
	}

	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved
	return out
}
