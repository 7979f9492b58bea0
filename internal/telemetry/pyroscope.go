package telemetry

import (
	"fmt"

	"github.com/grafana/pyroscope-go"
	log "github.com/sirupsen/logrus"
)

// InitPyroscope starts continuous profiling towards the given server. It
// returns a nil shutdown function if the url is empty.
func InitPyroscope(pyroscopeServerURL string) (func() error, error) {
	if pyroscopeServerURL == "" {
		return nil, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: serviceName,
		ServerAddress:   pyroscopeServerURL,
		Logger:          nil,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockDuration,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start pyroscope profiler: %s", err)
	}

	log.WithFields(log.Fields{
		"server":  pyroscopeServerURL,
		"service": serviceName,
	}).Info("pyroscope profiler started")

	return profiler.Stop, nil
}
