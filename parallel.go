package gainmap

import (
	"runtime"
	"sync"
)

func workerCount(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// forEachBand splits rows [0, height) into bands of chunkRows and runs fn on them
// with at most workers goroutines. Band index i covers rows [i*chunkRows, ...).
func forEachBand(height, chunkRows, workers int, fn func(band, y0, y1 int)) {
	if height <= 0 {
		return
	}
	if chunkRows <= 0 {
		chunkRows = defaultChunkRows
	}
	workers = workerCount(workers)
	bands := (height + chunkRows - 1) / chunkRows
	if workers == 1 || bands == 1 {
		for b := 0; b < bands; b++ {
			y0 := b * chunkRows
			fn(b, y0, min(y0+chunkRows, height))
		}
		return
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for b := 0; b < bands; b++ {
		y0 := b * chunkRows
		y1 := min(y0+chunkRows, height)
		sem <- struct{}{}
		wg.Add(1)
		go func(b, y0, y1 int) {
			defer func() {
				<-sem
				wg.Done()
			}()
			fn(b, y0, y1)
		}(b, y0, y1)
	}
	wg.Wait()
}

func bandCount(height, chunkRows int) int {
	if height <= 0 {
		return 0
	}
	if chunkRows <= 0 {
		chunkRows = defaultChunkRows
	}
	return (height + chunkRows - 1) / chunkRows
}
