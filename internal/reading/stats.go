package reading

import (
	"sort"
	"time"
)

// MeterStatistics summarises the readings taken from one meter
type MeterStatistics struct {
	MeterNumber      string    `json:"meterNumber"`
	ReadingsCount    int       `json:"readingsCount"`
	FirstReading     int64     `json:"firstReading"`
	LastReading      int64     `json:"lastReading"`
	TotalConsumption int64     `json:"totalConsumption"`
	AveragePerDay    float64   `json:"averagePerDay"`
	FirstTimestamp   time.Time `json:"firstTimestamp"`
	LastTimestamp    time.Time `json:"lastTimestamp"`
}

// Statistics is the per-meter summary of a user's readings
type Statistics struct {
	TotalReadings int               `json:"totalReadings"`
	Meters        []MeterStatistics `json:"meters"`
}

// Summarize groups readings by meter. Consumption is the last value minus the first,
// ordered by creation time; the daily average is zero when all readings share an instant.
func Summarize(readings []*Reading) Statistics {
	ordered := make([]*Reading, len(readings))
	copy(ordered, readings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	byMeter := make(map[string]*MeterStatistics)
	for _, r := range ordered {
		m, ok := byMeter[r.MeterNumber]
		if !ok {
			m = &MeterStatistics{
				MeterNumber:    r.MeterNumber,
				FirstReading:   r.Value,
				FirstTimestamp: r.CreatedAt,
			}
			byMeter[r.MeterNumber] = m
		}
		m.ReadingsCount++
		m.LastReading = r.Value
		m.LastTimestamp = r.CreatedAt
	}

	stats := Statistics{
		TotalReadings: len(readings),
		Meters:        make([]MeterStatistics, 0, len(byMeter)),
	}
	for _, m := range byMeter {
		m.TotalConsumption = m.LastReading - m.FirstReading
		days := m.LastTimestamp.Sub(m.FirstTimestamp).Hours() / 24
		if days > 0 {
			m.AveragePerDay = float64(m.TotalConsumption) / days
		}
		stats.Meters = append(stats.Meters, *m)
	}
	sort.Slice(stats.Meters, func(i, j int) bool {
		return stats.Meters[i].MeterNumber < stats.Meters[j].MeterNumber
	})
	return stats
}
