package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultTaskTimeout bounds a single task execution.
const DefaultTaskTimeout = time.Minute

var ErrTaskNotFound = errors.New("task not found")

// Job is the work a task runs on every tick.
type Job func(ctx context.Context) error

// TaskInfo is a snapshot of a task's last execution.
type TaskInfo struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	LastRun  *time.Time `json:"last_run"`
	NextRun  *time.Time `json:"next_run"`
	LastErr  string     `json:"last_error,omitempty"`
	Runs     int        `json:"runs"`
}

type task struct {
	info     TaskInfo
	schedule cron.Schedule
	job      Job
	entryID  cron.EntryID
	running  sync.Mutex
}

// Scheduler runs named jobs on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.RWMutex
	tasks   map[string]*task
	timeout time.Duration
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		tasks:   make(map[string]*task),
		timeout: DefaultTaskTimeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// WithTimeout sets the per-execution timeout. Call before Start.
func (s *Scheduler) WithTimeout(d time.Duration) *Scheduler {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// AddTask schedules job under name. Both 5 field and 6 field (seconds) expressions are
// accepted, as are descriptors such as "@every 1m".
func (s *Scheduler) AddTask(name, schedule string, job Job) error {
	if name == "" {
		return fmt.Errorf("task name is required")
	}
	if job == nil {
		return fmt.Errorf("task job is required")
	}
	sched, err := parseCronSchedule(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("task %s already exists", name)
	}

	t := &task{info: TaskInfo{Name: name, Schedule: schedule}, schedule: sched, job: job}
	next := sched.Next(time.Now())
	t.info.NextRun = &next
	t.entryID = s.cron.Schedule(sched, cron.FuncJob(func() { s.execute(t) }))
	s.tasks[name] = t

	s.logger.Info("task added", zap.String("task", name), zap.String("schedule", schedule))
	return nil
}

// RemoveTask unschedules name.
func (s *Scheduler) RemoveTask(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	s.cron.Remove(t.entryID)
	delete(s.tasks, name)
	s.logger.Info("task removed", zap.String("task", name))
	return nil
}

// RunNow executes name synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	t, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return s.execute(t)
}

// Task returns a snapshot of name.
func (s *Scheduler) Task(name string) (TaskInfo, bool) {
	s.mu.RLock()
	t, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return TaskInfo{}, false
	}
	t.running.Lock()
	defer t.running.Unlock()
	return t.info, true
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// execute runs one tick; overlapping ticks of the same task are serialized.
func (s *Scheduler) execute(t *task) (err error) {
	t.running.Lock()
	defer t.running.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
		now := time.Now()
		next := t.schedule.Next(now)
		t.info.LastRun = &now
		t.info.NextRun = &next
		t.info.Runs++
		t.info.LastErr = ""
		if err != nil {
			t.info.LastErr = err.Error()
			s.logger.Warn("task failed", zap.String("task", t.info.Name), zap.Duration("duration", time.Since(start)), zap.Error(err))
			return
		}
		s.logger.Debug("task completed", zap.String("task", t.info.Name), zap.Duration("duration", time.Since(start)))
	}()

	return t.job(ctx)
}

// parseCronSchedule parses cron expression supporting both 5 and 6 field formats
func parseCronSchedule(schedule string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(schedule)
	if err == nil {
		return sched, nil
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err = parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cron expression: %w", err)
	}
	return sched, nil
}
