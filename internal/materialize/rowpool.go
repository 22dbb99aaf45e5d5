package materialize

import "sync"

// rowPool recycles the value slices of append batches. Workspaces copy what
// they need during InsertRows, so a batch can be reused once the call
// returns successfully.
var rowPool sync.Pool

// getRow returns a zeroed slice of length n.
func getRow(n int) []any {
	if p, ok := rowPool.Get().(*[]any); ok && cap(*p) >= n {
		r := (*p)[:n]
		clear(r)
		return r
	}
	return make([]any, n)
}

// releaseRows hands every row of batch back to the pool. Callers must not
// touch batch afterwards. On failed inserts rows are left to the GC instead.
func releaseRows(batch [][]any) {
	for i := range batch {
		r := batch[i][:0]
		rowPool.Put(&r)
		batch[i] = nil
	}
}
