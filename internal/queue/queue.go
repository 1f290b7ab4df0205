package queue

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

type Job struct {
	Fn   func() error
	Errc chan error
}

// RequestQueueManager runs HTTP handler jobs on a fixed pool of workers.
type RequestQueueManager struct {
	JobQueue   chan Job
	MaxWorkers int
	wg         sync.WaitGroup
	logger     zerolog.Logger
	closeOnce  sync.Once
}

func NewRequestQueueManager(queueSize int, maxWorkers int, logger zerolog.Logger) *RequestQueueManager {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	manager := &RequestQueueManager{
		JobQueue:   make(chan Job, queueSize),
		MaxWorkers: maxWorkers,
		logger:     logger,
	}
	manager.startWorkers()
	return manager
}

func (rqm *RequestQueueManager) startWorkers() {
	for i := 0; i < rqm.MaxWorkers; i++ {
		rqm.wg.Add(1)
		go func(workerID int) {
			defer rqm.wg.Done()
			rqm.logger.Debug().Int("worker", workerID).Msg("worker started")
			for job := range rqm.JobQueue {
				err := rqm.run(job)
				if job.Errc != nil {
					job.Errc <- err
				}
			}
			rqm.logger.Debug().Int("worker", workerID).Msg("worker stopped")
		}(i)
	}
}

// run keeps a panicking handler from taking its worker down.
func (rqm *RequestQueueManager) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			rqm.logger.Error().Interface("panic", r).Msg("job panicked")
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Fn()
}

func (rqm *RequestQueueManager) EnqueueJob(job Job) {
	rqm.JobQueue <- job
}

func (rqm *RequestQueueManager) Shutdown() {
	rqm.closeOnce.Do(func() {
		close(rqm.JobQueue)
	})
	rqm.wg.Wait()
}
