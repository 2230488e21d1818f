package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a scheduled maintenance task
type Job interface {
	Run(ctx context.Context) error
	GetNextRunTime() time.Time
}

// JobStatus describes one registered job for the ops endpoint
type JobStatus struct {
	Name        string    `json:"name"`
	NextRunTime time.Time `json:"next_run_time"`
}

// JobScheduler runs registered jobs at their own cadence. Each job computes
// its next run time after every completion; jobs never overlap themselves.
type JobScheduler struct {
	jobs    map[string]Job
	timers  map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewJobScheduler creates an empty scheduler
func NewJobScheduler() *JobScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{
		jobs:   make(map[string]Job),
		timers: make(map[string]*time.Timer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job before Start
func (s *JobScheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = job
	log.Printf("✅ [SCHEDULER] Registered job: %s", name)
}

// Start schedules all registered jobs
func (s *JobScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	log.Printf("🚀 [SCHEDULER] Starting with %d jobs", len(s.jobs))

	for name, job := range s.jobs {
		s.scheduleLocked(name, job)
	}
}

// scheduleLocked arms the timer for a job's next run. Caller holds mu.
func (s *JobScheduler) scheduleLocked(name string, job Job) {
	nextRun := job.GetNextRunTime()
	log.Printf("⏰ [SCHEDULER] Job '%s' next run at %s", name, nextRun.Format(time.RFC3339))

	s.timers[name] = time.AfterFunc(time.Until(nextRun), func() {
		s.runJob(name, job)
	})
}

// runJob executes one job and reschedules it
func (s *JobScheduler) runJob(name string, job Job) {
	s.wg.Add(1)
	defer s.wg.Done()

	start := time.Now()
	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", name, err)
	} else {
		log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", name, time.Since(start))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.scheduleLocked(name, job)
	}
}

// RunNow runs a job immediately, outside its schedule
func (s *JobScheduler) RunNow(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		log.Printf("⚠️ [SCHEDULER] Job '%s' not found", name)
		return nil
	}
	return job.Run(s.ctx)
}

// GetStatus reports every registered job and its next run time
func (s *JobScheduler) GetStatus() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make([]JobStatus, 0, len(s.jobs))
	for name, job := range s.jobs {
		status = append(status, JobStatus{Name: name, NextRunTime: job.GetNextRunTime()})
	}
	return status
}

// Stop cancels pending timers and waits for in-flight jobs
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for name, timer := range s.timers {
		timer.Stop()
		log.Printf("⏹️ [SCHEDULER] Stopped job: %s", name)
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	log.Println("🛑 [SCHEDULER] Stopped")
}
