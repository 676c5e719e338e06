package scheduler

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is a named maintenance job run on the nightly schedule.
type Task struct {
	Name string
	Run  func() error
}

// Scheduler runs registered maintenance tasks once a day at a fixed local
// hour. It exists for housekeeping that should not ride on request paths,
// like refreshing district hulls after bulk imports.
type Scheduler struct {
	logger *logrus.Logger
	hour   int
	tasks  []Task
	stop   chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewScheduler(logger *logrus.Logger, hour int) *Scheduler {
	if hour < 0 || hour > 23 {
		hour = 3
	}
	return &Scheduler{
		logger: logger,
		hour:   hour,
		stop:   make(chan struct{}),
		now:    time.Now,
	}
}

// Register adds a task to the nightly run. Not safe after Start.
func (s *Scheduler) Register(name string, run func() error) {
	s.tasks = append(s.tasks, Task{Name: name, Run: run})
}

// Start launches the scheduling loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop terminates the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	for {
		wait := s.untilNextRun()
		s.logger.WithField("next_run_in", wait.String()).Info("Scheduled next maintenance run")

		timer := time.NewTimer(wait)
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			s.runTasks()
		}
	}
}

func (s *Scheduler) untilNextRun() time.Duration {
	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

func (s *Scheduler) runTasks() {
	for _, task := range s.tasks {
		start := s.now()
		if err := task.Run(); err != nil {
			s.logger.WithError(err).WithField("task", task.Name).Error("Maintenance task failed")
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"task":     task.Name,
			"duration": s.now().Sub(start).String(),
		}).Info("Maintenance task completed")
	}
}
