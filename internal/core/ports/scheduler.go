package ports

type TimeUnit int

const (
	UnixTime TimeUnit = iota
	BlockHeight
)

func (u TimeUnit) String() string {
	if u == BlockHeight {
		return "block"
	}
	return "second"
}

type SchedulerService interface {
	Start()
	Stop()
	Unit() TimeUnit
	AddNow(delta int64) int64
	// ScheduleTaskOnce runs task once at the given time or block height.
	ScheduleTaskOnce(at int64, task func()) error
	// ScheduleEvery runs task every interval seconds or blocks.
	ScheduleEvery(interval int64, task func()) error
}
