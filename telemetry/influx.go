package telemetry

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ChristopherRabotin/ascent"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the InfluxDB measurement of the flight points.
const Measurement = "ascent"

// PointWriter is the part of the InfluxDB write API used by InfluxSink.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point)
}

// Point converts a snapshot to an InfluxDB point dated from the epoch.
func Point(vehicle string, epoch time.Time, s ascent.Snapshot) *influxdb2_write.Point {
	fields := map[string]interface{}{
		"altitude":  s.Altitude,
		"speed":     s.Speed,
		"fuel":      s.FuelPercent,
		"mass":      s.Mass,
		"gload":     s.GLoad,
		"x":         s.Position.X,
		"y":         s.Position.Y,
		"z":         s.Position.Z,
		"vx":        s.Velocity.X,
		"vy":        s.Velocity.Y,
		"vz":        s.Velocity.Z,
		"apoapsis":  s.Orbit.ApoapsisAltitude,
		"periapsis": s.Orbit.PeriapsisAltitude,
		"faults":    len(s.Faults),
		"events":    len(s.Events),
	}
	tags := map[string]string{
		"vehicle": vehicle,
		"stage":   s.Stage.Name(),
	}
	ts := epoch.Add(time.Duration(s.Time * float64(time.Second)))
	return influxdb2.NewPoint(Measurement, tags, fields, ts)
}

// InfluxSink writes every snapshot it observes as an InfluxDB point. When no
// writer is available, points are written as line protocol to the backup.
type InfluxSink struct {
	Vehicle string
	Epoch   time.Time
	writer  PointWriter
	backup  io.Writer
	logger  log.Logger
}

// NewInfluxSink returns a sink writing to w, or to backup as line protocol
// when w is nil.
func NewInfluxSink(vehicle string, epoch time.Time, w PointWriter, backup io.Writer, logger log.Logger) *InfluxSink {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &InfluxSink{Vehicle: vehicle, Epoch: epoch, writer: w, backup: backup, logger: logger}
}

// Observe writes the snapshot.
func (s *InfluxSink) Observe(snap ascent.Snapshot) {
	if err := s.write(Point(s.Vehicle, s.Epoch, snap)); err != nil {
		level.Error(s.logger).Log("subsys", "influx", "err", err)
	}
}

func (s *InfluxSink) write(point *influxdb2_write.Point) error {
	if s.writer != nil {
		s.writer.WritePoint(point)
		return nil
	}
	if s.backup == nil {
		return fmt.Errorf("no InfluxDB writer nor backup available")
	}
	lineProtocol := strings.TrimRight(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := s.backup.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup: %w", err)
	}
	return nil
}

// DialInflux returns a sink writing through the non-blocking write API of a
// new InfluxDB client. The returned function flushes and closes the client.
func DialInflux(url, token, org, bucket, vehicle string, epoch time.Time, logger log.Logger) (*InfluxSink, func()) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	client := influxdb2.NewClientWithOptions(url, token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000))
	writeAPI := client.WriteAPI(org, bucket)
	go func() {
		for err := range writeAPI.Errors() {
			level.Error(logger).Log("subsys", "influx", "bucket", bucket, "err", err)
		}
	}()
	closer := func() {
		writeAPI.Flush()
		client.Close()
	}
	return NewInfluxSink(vehicle, epoch, writeAPI, nil, logger), closer
}
