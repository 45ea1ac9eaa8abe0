package attack

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"zipcrack/internal/zipcipher"
)

// ErrNoSolution is returned when every candidate has been tried without
// success. This is the expected outcome for wrong or misaligned
// plaintext, not a programming error.
var ErrNoSolution = errors.New("no solution found, the plaintext is probably wrong or misaligned")

// Recover runs the full pipeline over the given data: Z reduction, then
// the attack over every surviving candidate, partitioned across workers.
// Each worker owns its own Attack instance; the first success stops the
// others. With workers <= 0 one worker per CPU is used.
//
// The progress callback, when non-nil, is invoked with the number of
// candidates tried so far and the total; it may be called concurrently
// from several workers.
func Recover(data *Data, workers int, progress func(done, total int)) (*zipcipher.Keys, error) {
	zr := NewZReduction(data.Keystream)
	zr.Generate()
	if len(data.Keystream) > WindowSize {
		zr.Reduce()
	}
	return RecoverFromCandidates(data, zr.Candidates(), zr.Index(), workers, progress)
}

// RecoverFromCandidates runs the attack stage alone, for drivers that
// obtained the candidate set elsewhere (a prior reduction, or a batch
// handed over a feed).
func RecoverFromCandidates(data *Data, candidates []uint32, index int, workers int, progress func(done, total int)) (*zipcipher.Keys, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}
	if len(candidates) == 0 {
		return nil, ErrNoSolution
	}

	var (
		next  atomic.Int64
		done  atomic.Int64
		stop  atomic.Bool
		found atomic.Pointer[zipcipher.Keys]
		wg    sync.WaitGroup
	)

	total := len(candidates)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := NewAttack(data, index-(WindowSize-1))
			for !stop.Load() {
				i := int(next.Add(1)) - 1
				if i >= total {
					return
				}
				if a.TryCandidate(candidates[i]) {
					found.Store(a.Keys())
					stop.Store(true)
					return
				}
				n := done.Add(1)
				if progress != nil {
					progress(int(n), total)
				}
			}
		}()
	}
	wg.Wait()

	if keys := found.Load(); keys != nil {
		return keys, nil
	}
	return nil, ErrNoSolution
}
