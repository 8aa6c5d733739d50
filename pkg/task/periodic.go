package task

import (
	"sync"
	"time"

	"github.com/argus-mc/argus/pkg/log"
)

// Cancel stops a scheduled job.
type Cancel func()

// Job is a unit of periodic maintenance work.
type Job func()

// ScheduleEvery runs job every interval until the returned Cancel is called.
// Panics inside job are recovered and logged so a broken job cannot take down
// the maintenance goroutine.
func ScheduleEvery(interval time.Duration, name string, job Job) Cancel {
	if interval <= 0 {
		interval = time.Minute
	}

	stopCh := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runJob(name, job)
			case <-stopCh:
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(stopCh) })
	}
}

func runJob(name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("periodic job %s panicked: %v", name, r)
		}
	}()
	job()
}
