package dynamo

import "sync"

// Span is a half-open index range [Start, End).
type Span struct {
	Start, End int
}

// Partition splits [0, n) into at most workers contiguous spans of at least
// minChunk indices each. It returns a single span when the range is too
// small to be worth splitting and nil when n is zero.
func Partition(n, workers, minChunk int) []Span {
	if n <= 0 {
		return nil
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if workers < 1 || n <= minChunk {
		workers = 1
	}
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers
	spans := make([]Span, 0, workers)
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}

// ParallelFor runs fn once per span, each on its own goroutine, and waits
// for all of them. fn receives the span's position in spans.
func ParallelFor(spans []Span, fn func(i int, s Span)) {
	if len(spans) == 1 {
		fn(0, spans[0])
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(spans))
	for i, s := range spans {
		go func(i int, s Span) {
			defer wg.Done()
			fn(i, s)
		}(i, s)
	}
	wg.Wait()
}
