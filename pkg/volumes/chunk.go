package volumes

// Chunk splits seq into groups of n. The last group absorbs the remainder,
// so it may hold up to 2n-1 items; a sequence no longer than n stays whole.
//
//	Chunk([1..9], 3)  -> [1 2 3] [4 5 6] [7 8 9]
//	Chunk([1..8], 3)  -> [1 2 3] [4 5 6 7 8]
//	Chunk([1..10], 3) -> [1 2 3] [4 5 6] [7 8 9 10]
func Chunk[T any](seq []T, n int) [][]T {
	if len(seq) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}

	q := len(seq) / n
	if q <= 1 {
		return [][]T{append([]T(nil), seq...)}
	}

	groups := make([][]T, 0, q)
	for i := 0; i < q-1; i++ {
		groups = append(groups, append([]T(nil), seq[i*n:(i+1)*n]...))
	}
	groups = append(groups, append([]T(nil), seq[(q-1)*n:]...))
	return groups
}

// Split cuts seq into consecutive groups of n; the last group holds whatever
// is left and may be smaller.
func Split[T any](seq []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	var groups [][]T
	for start := 0; start < len(seq); start += n {
		end := min(start+n, len(seq))
		groups = append(groups, append([]T(nil), seq[start:end]...))
	}
	return groups
}
