// Package telemetry exports the flight of a simulation to Prometheus and InfluxDB.
package telemetry

import (
	"fmt"
	"net/http"

	"github.com/ChristopherRabotin/ascent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics of a flight. Observe is meant to
// be installed as a simulation listener.
type Collector struct {
	gatherer prometheus.Gatherer

	Ticks       prometheus.Counter
	Faults      *prometheus.CounterVec
	Separations *prometheus.CounterVec
	Rejected    prometheus.Counter

	Time     prometheus.Gauge
	Altitude prometheus.Gauge
	Speed    prometheus.Gauge
	Fuel     prometheus.Gauge
	Mass     prometheus.Gauge
	GLoad    prometheus.Gauge
	Stage    prometheus.Gauge
}

// NewCollector registers the flight metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &Collector{gatherer: gatherer}
	var err error

	if c.Ticks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ascent_ticks_total",
		Help: "Total number of simulation ticks.",
	}), "ascent_ticks_total"); err != nil {
		return nil, err
	}
	if c.Faults, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ascent_faults_total",
		Help: "Total number of recovered numeric faults, labeled by kind.",
	}, []string{"kind"}), "ascent_faults_total"); err != nil {
		return nil, err
	}
	if c.Separations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ascent_separations_total",
		Help: "Total number of separated components, labeled by component.",
	}, []string{"component"}), "ascent_separations_total"); err != nil {
		return nil, err
	}
	if c.Rejected, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ascent_rejected_commands_total",
		Help: "Total number of rejected commands.",
	}), "ascent_rejected_commands_total"); err != nil {
		return nil, err
	}

	gauges := []struct {
		dst        *prometheus.Gauge
		name, help string
	}{
		{&c.Time, "ascent_time_seconds", "Simulation time."},
		{&c.Altitude, "ascent_altitude_meters", "Altitude above the surface."},
		{&c.Speed, "ascent_speed_mps", "Speed relative to the body center."},
		{&c.Fuel, "ascent_fuel_percent", "Propellant left in the tank."},
		{&c.Mass, "ascent_mass_kg", "Total vehicle mass."},
		{&c.GLoad, "ascent_gload", "Acceleration in multiples of standard gravity."},
		{&c.Stage, "ascent_stage", "Current flight stage, from 0 (idle) to 6 (orbital maneuvering)."},
	}
	for _, g := range gauges {
		if *g.dst, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help}), g.name); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe records a snapshot.
func (c *Collector) Observe(s ascent.Snapshot) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	for _, f := range s.Faults {
		c.Faults.WithLabelValues(f.Kind.String()).Inc()
	}
	for _, ev := range s.Events {
		for _, comp := range ev.Components {
			c.Separations.WithLabelValues(comp.String()).Inc()
		}
	}
	c.Rejected.Add(float64(len(s.Rejected)))
	c.Time.Set(s.Time)
	c.Altitude.Set(s.Altitude)
	c.Speed.Set(s.Speed)
	c.Fuel.Set(s.FuelPercent)
	c.Mass.Set(s.Mass)
	c.GLoad.Set(s.GLoad)
	c.Stage.Set(float64(s.Stage))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// register registers the collector, or returns the one already registered
// under the same name when it has the same type.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
