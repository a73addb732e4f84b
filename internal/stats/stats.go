package stats

import (
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"time"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater serializes counter updates through a single goroutine so hot
// paths never contend on the expvar map.
type StatsUpdater struct {
	vars    *expvar.Map
	updates chan metricDelta
}

type metricDelta struct {
	name  string
	delta int64
}

// NewStatsUpdater registers the debug endpoint and the uptime gauge.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	// the map is served by our own handler rather than published into the
	// process-global expvar registry
	su := &StatsUpdater{
		vars:    new(expvar.Map).Init(),
		updates: make(chan metricDelta, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	return su
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	data := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		data[kv.Key] = value
	})

	json.NewEncoder(w).Encode(data)
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Incr(name string) {
	su.updates <- metricDelta{name: name, delta: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.updates <- metricDelta{name: name, delta: -1}
}

// applyUpdates drains the channel until Stop closes it. An update for an
// unregistered metric is dropped, not fatal.
func (su *StatsUpdater) applyUpdates() {
	for u := range su.updates {
		counter, ok := su.vars.Get(u.name).(*expvar.Int)
		if !ok {
			log.Printf("stats: unregistered metric %q", u.name)
			continue
		}
		counter.Add(u.delta)
	}
}

func (su *StatsUpdater) Run() {
	go su.applyUpdates()
}

func (su *StatsUpdater) Stop() {
	close(su.updates)
}
