package timescheduler

import (
	"fmt"
	"time"

	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/go-co-op/gocron"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) Unit() ports.TimeUnit {
	return ports.UnixTime
}

func (s *service) AddNow(delta int64) int64 {
	return time.Now().Add(time.Duration(delta) * time.Second).Unix()
}

func (s *service) ScheduleTaskOnce(at int64, task func()) error {
	delay := at - time.Now().Unix()
	if delay <= 0 {
		go task()
		return nil
	}

	_, err := s.scheduler.Every(int(delay)).Seconds().WaitForSchedule().LimitRunsTo(1).Do(task)
	return err
}

func (s *service) ScheduleEvery(interval int64, task func()) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be greater than 0")
	}

	_, err := s.scheduler.Every(int(interval)).Seconds().
		WaitForSchedule().SingletonMode().Do(task)
	return err
}
