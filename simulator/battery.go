package main

import (
	"sync"
	"time"
)

// Battery models a home storage unit charging from solar surplus and
// covering the household deficit.
type Battery struct {
	CapacityKWh float64 // total capacity
	Soc         float64 // state of charge [0,1]
	MaxPowerW   float64 // charge and discharge limit
	mu          sync.Mutex
}

// Step advances the battery by dt given the household balance. A positive
// surplus charges the battery, a deficit discharges it down to empty.
// It returns the battery power in watts, positive while charging.
func (b *Battery) Step(surplusW float64, dt time.Duration) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	hours := dt.Hours()
	if hours <= 0 {
		return 0
	}

	power := surplusW
	if power > b.MaxPowerW {
		power = b.MaxPowerW
	}
	if power < -b.MaxPowerW {
		power = -b.MaxPowerW
	}

	if power > 0 {
		headroom := (1 - b.Soc) * b.CapacityKWh * 1000
		if power*hours > headroom {
			power = headroom / hours
		}
	} else if power < 0 {
		stored := b.Soc * b.CapacityKWh * 1000
		if -power*hours > stored {
			power = -stored / hours
		}
	}

	b.Soc += power * hours / (b.CapacityKWh * 1000)
	return power
}

// SoCPercent reports the state of charge on the 0-100 scale.
func (b *Battery) SoCPercent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Soc * 100
}
