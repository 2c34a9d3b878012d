package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"sync"
	"time"
)

const (
	ActiveConnections     = "ActiveConnections"
	ActiveRooms           = "ActiveRooms"
	ControlEventsAccepted = "ControlEventsAccepted"
	ControlEventsRejected = "ControlEventsRejected"
	ConflictResolutions   = "ConflictResolutions"
	BroadcastDrops        = "BroadcastDrops"
	SyncRequests          = "SyncRequests"
	PingRTTSamples        = "PingRTTSamples"
	PingRTTTotalMicros    = "PingRTTTotalMicros"
	Uptime                = "Uptime"
)

var counters = []string{
	ActiveConnections,
	ActiveRooms,
	ControlEventsAccepted,
	ControlEventsRejected,
	ConflictResolutions,
	BroadcastDrops,
	SyncRequests,
	PingRTTSamples,
	PingRTTTotalMicros,
}

type Provider interface {
	Incr(name string)
	Decr(name string)
	Add(name string, delta int64)
	ObservePingRTT(rtt time.Duration)
}

// Stats holds the process counters. Values only change in response to real
// events: accepted connections, committed writes, measured pongs.
type Stats struct {
	mu   sync.RWMutex
	vars *expvar.Map
}

// New returns initialized stats. The map is not published to the global expvar
// registry so independent instances can coexist in one process.
func New() *Stats {
	s := &Stats{}
	s.Reset()

	return s
}

// Reset zeroes every counter and restarts the uptime clock.
func (s *Stats) Reset() {
	vars := new(expvar.Map).Init()
	for _, name := range counters {
		vars.Set(name, new(expvar.Int))
	}

	start := time.Now()
	vars.Set(Uptime, expvar.Func(func() any {
		return time.Since(start).Milliseconds()
	}))

	s.mu.Lock()
	s.vars = vars
	s.mu.Unlock()
}

func (s *Stats) Add(name string, delta int64) {
	s.mu.RLock()
	metric := s.vars.Get(name)
	s.mu.RUnlock()
	if metric == nil {
		panic("metric not found: " + name)
	}

	metric.(*expvar.Int).Add(delta)
}

func (s *Stats) Incr(name string) {
	s.Add(name, 1)
}

func (s *Stats) Decr(name string) {
	s.Add(name, -1)
}

func (s *Stats) ObservePingRTT(rtt time.Duration) {
	s.Incr(PingRTTSamples)
	s.Add(PingRTTTotalMicros, rtt.Microseconds())
}

// Value returns the current value of a counter.
func (s *Stats) Value(name string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.vars.Get(name).(*expvar.Int); ok {
		return v.Value()
	}

	return 0
}

func (s *Stats) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		data := make(map[string]any)

		s.mu.RLock()
		s.vars.Do(func(kv expvar.KeyValue) {
			var value any
			json.Unmarshal([]byte(kv.Value.String()), &value)
			data[kv.Key] = value
		})
		s.mu.RUnlock()

		json.NewEncoder(w).Encode(data)
	})
}
