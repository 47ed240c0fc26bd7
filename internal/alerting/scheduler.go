package alerting

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/logger"
)

const defaultSchedulerTick = 30 * time.Second

// Job is a pending delivery of a fired rule for one employee.
type Job struct {
	Key     string             `json:"key"`
	Rule    entities.AlertRule `json:"rule"`
	Event   TriggerEvent       `json:"event"`
	Attempt int                `json:"attempt"`
	DueAt   time.Time          `json:"dueAt"`
}

// DeliverFunc delivers a due job. It returns false when the job must not
// be repeated, e.g. because the rule was disabled in the meantime.
type DeliverFunc func(ctx context.Context, job *Job) bool

// Scheduler holds delayed and repeating deliveries in memory. Jobs are keyed
// by rule, employee and day, so an incident is scheduled at most once.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*Job
	// inFlight holds jobs taken by RunDue until their delivery finishes.
	// Cancel removes them here too, which stops their follow-up.
	inFlight   map[string]*Job
	deliver    DeliverFunc
	tick       time.Duration
	maxRepeats int
	log        logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewScheduler creates a Scheduler. maxRepeats bounds the number of
// deliveries after the first one.
func NewScheduler(tick time.Duration, maxRepeats int, log logger.Logger) *Scheduler {
	if tick <= 0 {
		tick = defaultSchedulerTick
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		jobs:       make(map[string]*Job),
		inFlight:   make(map[string]*Job),
		tick:       tick,
		maxRepeats: maxRepeats,
		log:        log.Module("alerting.scheduler"),
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) setDeliver(fn DeliverFunc) {
	s.mu.Lock()
	s.deliver = fn
	s.mu.Unlock()
}

// Schedule adds a job unless one with the same key is pending. It reports
// whether the job was added.
func (s *Scheduler) Schedule(job *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(job)
}

func (s *Scheduler) scheduleLocked(job *Job) bool {
	if _, exists := s.jobs[job.Key]; exists {
		return false
	}
	s.jobs[job.Key] = job
	return true
}

// Cancel drops the pending and in-flight jobs of an employee's incident type
// and returns how many were removed. An in-flight delivery completes but is
// not repeated.
func (s *Scheduler) Cancel(institutionID, employeeID, ruleType string) int {
	return s.cancelWhere(func(_ string, job *Job) bool {
		return job.Event.InstitutionID == institutionID &&
			job.Event.EmployeeID == employeeID &&
			job.Rule.Type == ruleType
	})
}

// CancelRule drops every pending and in-flight job of a rule.
func (s *Scheduler) CancelRule(ruleID string) int {
	prefix := ruleID + "|"
	return s.cancelWhere(func(key string, _ *Job) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (s *Scheduler) cancelWhere(match func(key string, job *Job) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, jobs := range []map[string]*Job{s.jobs, s.inFlight} {
		for key, job := range jobs {
			if match(key, job) {
				delete(jobs, key)
				n++
			}
		}
	}
	return n
}

// Pending returns a snapshot of pending jobs ordered by due time.
func (s *Scheduler) Pending() []Job {
	s.mu.Lock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out
}

// RunDue delivers every job due at now and reschedules repeating ones. It
// returns the number of deliveries made.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	deliver := s.deliver
	var due []*Job
	if deliver == nil {
		s.mu.Unlock()
		return 0
	}
	for key, job := range s.jobs {
		if !job.DueAt.After(now) {
			due = append(due, job)
			delete(s.jobs, key)
			s.inFlight[key] = job
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })

	var delivered int
	for _, job := range due {
		if !s.inFlightLive(job) {
			continue
		}
		repeat := deliver(ctx, job)
		delivered++

		s.mu.Lock()
		live := s.inFlight[job.Key] == job
		if live {
			delete(s.inFlight, job.Key)
		}
		if next := s.next(job, now); repeat && live && next != nil {
			s.scheduleLocked(next)
		}
		s.mu.Unlock()
	}
	return delivered
}

// inFlightLive reports whether job was not cancelled since RunDue took it.
func (s *Scheduler) inFlightLive(job *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[job.Key] == job
}

// next returns the follow-up of a delivered job, or nil when the rule does
// not repeat or the repeat budget is spent.
func (s *Scheduler) next(job *Job, now time.Time) *Job {
	sched := job.Rule.Schedule
	if !sched.Repeat || sched.RepeatInterval < 1 || job.Attempt > s.maxRepeats {
		return nil
	}
	return &Job{
		Key:     job.Key,
		Rule:    job.Rule,
		Event:   job.Event,
		Attempt: job.Attempt + 1,
		DueAt:   now.Add(time.Duration(sched.RepeatInterval) * time.Minute),
	}
}

// Start runs RunDue on every tick until Stop is called or ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if n := s.RunDue(ctx, now); n > 0 {
					s.log.Debug("scheduled alerts delivered", logger.Int("count", n))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the ticker loop and waits for an in-flight run. Pending jobs
// are discarded with the process.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
