package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/andresmejia3/fitlab/internal/types"
)

// DetectFunc inspects a single frame. It may be called from several
// goroutines at once.
type DetectFunc func(task types.FrameTask) (types.Detection, error)

// Pool runs Size workers over a stream of frame tasks.
type Pool struct {
	Size   int
	Detect DetectFunc
}

// Run feeds tasks to the workers and calls emit with every detection in
// strict frame order. Task indices must start at 0 and be contiguous.
// The first worker or emit error stops the pool and is returned.
func (p *Pool) Run(ctx context.Context, tasks <-chan types.FrameTask, emit func(types.Detection) error) error {
	size := p.Size
	if size < 1 {
		size = 1
	}

	// Cancelling stops every worker if we return early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan types.Detection, size*2)
	errChan := make(chan error, size)

	var wg sync.WaitGroup
	for i := 0; i < size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-tasks:
					if !ok {
						return
					}
					det, err := p.Detect(task)
					if err != nil {
						select {
						case errChan <- fmt.Errorf("worker %d, frame %d: %w", id, task.Index, err):
						default:
						}
						cancel()
						return
					}
					select {
					case results <- det:
					case <-ctx.Done():
						return
					}
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Worker 2 might finish before worker 1, so buffer until the next index arrives.
	buffer := make(map[int]types.Detection)
	next := 0
	for det := range results {
		buffer[det.Index] = det
		for {
			d, ok := buffer[next]
			if !ok {
				break
			}
			delete(buffer, next)
			if err := emit(d); err != nil {
				return err
			}
			next++
		}
	}

	select {
	case err := <-errChan:
		return err
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(buffer) > 0 {
		return fmt.Errorf("frame %d never arrived, %d frames left unordered", next, len(buffer))
	}
	return nil
}
