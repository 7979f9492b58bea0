package blockscheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/binaryplan/binaryd/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// TipFetcher returns the current head block of the ledger.
type TipFetcher func(ctx context.Context) (uint64, error)

type Option func(*service)

func WithTickerInterval(interval time.Duration) Option {
	return func(s *service) {
		s.tickerInterval = interval
	}
}

type periodicTask struct {
	interval int64
	lastRun  int64
	task     func()
	running  bool
}

type service struct {
	fetchTip       TipFetcher
	lock           sync.Locker
	onceTasks      map[int64][]func()
	periodic       []*periodicTask
	stopCh         chan struct{}
	tickerInterval time.Duration
	lastTip        int64
}

func NewScheduler(fetchTip TipFetcher, opts ...Option) (ports.SchedulerService, error) {
	if fetchTip == nil {
		return nil, fmt.Errorf("tip fetcher is required")
	}

	svc := &service{
		fetchTip:       fetchTip,
		lock:           &sync.Mutex{},
		onceTasks:      make(map[int64][]func()),
		periodic:       make([]*periodicTask, 0),
		stopCh:         make(chan struct{}),
		tickerInterval: time.Second * 10,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

func (s *service) Start() {
	go func() {
		ticker := time.NewTicker(s.tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				due, err := s.popDueTasks()
				if err != nil {
					log.Errorf("error fetching tasks: %s", err)
					continue
				}

				log.Debugf("fetched %d tasks", len(due))
				for _, task := range due {
					go task()
				}
			}
		}
	}()
}

func (s *service) Stop() {
	close(s.stopCh)
}

func (s *service) Unit() ports.TimeUnit {
	return ports.BlockHeight
}

func (s *service) AddNow(delta int64) int64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastTip + delta
}

func (s *service) ScheduleTaskOnce(at int64, task func()) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.onceTasks[at]; !ok {
		s.onceTasks[at] = make([]func(), 0)
	}

	s.onceTasks[at] = append(s.onceTasks[at], task)

	return nil
}

func (s *service) ScheduleEvery(interval int64, task func()) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be greater than 0")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.periodic = append(s.periodic, &periodicTask{
		interval: interval,
		lastRun:  s.lastTip,
		task:     task,
	})
	return nil
}

func (s *service) popDueTasks() ([]func(), error) {
	tip, err := s.fetchTipHeight()
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.lastTip = tip
	due := make([]func(), 0)

	for height, tasks := range s.onceTasks {
		if height > tip {
			continue
		}

		due = append(due, tasks...)
		delete(s.onceTasks, height)
	}

	for _, p := range s.periodic {
		if p.lastRun == 0 {
			p.lastRun = tip
			continue
		}
		if p.running || tip-p.lastRun < p.interval {
			continue
		}
		p.lastRun = tip
		p.running = true
		due = append(due, s.singleton(p))
	}

	return due, nil
}

// singleton wraps a periodic task so that a slow run is never overlapped by
// the next trigger.
func (s *service) singleton(p *periodicTask) func() {
	return func() {
		defer func() {
			s.lock.Lock()
			p.running = false
			s.lock.Unlock()
		}()
		p.task()
	}
}

func (s *service) fetchTipHeight() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.tickerInterval)
	defer cancel()

	tip, err := s.fetchTip(ctx)
	if err != nil {
		return 0, err
	}

	log.Debugf("fetched ledger tip height %d", tip)

	return int64(tip), nil
}
