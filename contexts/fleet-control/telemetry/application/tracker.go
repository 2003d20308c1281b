package application

import (
	"sync"
	"time"

	"skyward/contexts/fleet-control/telemetry/domain/entities"
	v1 "skyward/contracts/messages/v1"
)

// Thresholds bound the telemetry values the monitor judges.
type Thresholds struct {
	BatteryFloor float64
	AltitudeMax  float64
	Staleness    time.Duration
}

// Verdict is what one observed sample implies. Anomalies are latched:
// a value that stays out of bounds across consecutive samples produces
// the anomaly once, and the latch re-arms when the value recovers.
type Verdict struct {
	BatteryAnomaly  *v1.AnomalyDetected
	AltitudeAnomaly *v1.AnomalyDetected
	Recovered       bool
}

// Tracker is the in-memory telemetry ledger, one entry per drone ever
// seen reporting.
type Tracker struct {
	thresholds Thresholds

	mu     sync.RWMutex
	drones map[string]*entities.TrackedDrone
}

func NewTracker(thresholds Thresholds) *Tracker {
	return &Tracker{
		thresholds: thresholds,
		drones:     make(map[string]*entities.TrackedDrone),
	}
}

// Observe folds one sample into the ledger and judges it.
func (t *Tracker) Observe(sample entities.Sample) Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	drone, exists := t.drones[sample.DroneID]
	if !exists {
		drone = &entities.TrackedDrone{DroneID: sample.DroneID}
		t.drones[sample.DroneID] = drone
	}
	drone.Last = sample
	drone.LastSeen = sample.At

	var verdict Verdict
	if drone.Offline {
		drone.Offline = false
		verdict.Recovered = true
	}

	if t.thresholds.BatteryFloor > 0 {
		if sample.Battery < t.thresholds.BatteryFloor {
			if !drone.LowBatteryLatch {
				drone.LowBatteryLatch = true
				verdict.BatteryAnomaly = &v1.AnomalyDetected{
					DroneID:   sample.DroneID,
					MissionID: sample.MissionID,
					Kind:      "battery",
					Value:     sample.Battery,
					Bound:     t.thresholds.BatteryFloor,
				}
			}
		} else {
			drone.LowBatteryLatch = false
		}
	}

	if t.thresholds.AltitudeMax > 0 {
		if sample.Position.Alt > t.thresholds.AltitudeMax {
			if !drone.AltitudeLatch {
				drone.AltitudeLatch = true
				verdict.AltitudeAnomaly = &v1.AnomalyDetected{
					DroneID:   sample.DroneID,
					MissionID: sample.MissionID,
					Kind:      "altitude",
					Value:     sample.Position.Alt,
					Bound:     t.thresholds.AltitudeMax,
				}
			}
		} else {
			drone.AltitudeLatch = false
		}
	}

	return verdict
}

// Sweep marks every drone whose last sample is older than the staleness
// window as offline and returns the drones that just crossed. A drone
// already marked offline is not returned again until it recovers first.
func (t *Tracker) Sweep(now time.Time) []entities.TrackedDrone {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []entities.TrackedDrone
	for _, drone := range t.drones {
		if drone.Offline {
			continue
		}
		if now.Sub(drone.LastSeen) <= t.thresholds.Staleness {
			continue
		}
		drone.Offline = true
		expired = append(expired, *drone)
	}
	return expired
}

// Snapshot returns the tracked state of one drone.
func (t *Tracker) Snapshot(droneID string) (entities.TrackedDrone, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	drone, exists := t.drones[droneID]
	if !exists {
		return entities.TrackedDrone{}, false
	}
	return *drone, true
}
