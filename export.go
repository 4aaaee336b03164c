package ascent

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/spatial/r3"
)

// CgCatalog definition.
type CgCatalog struct {
	Version string     `json:"version"`
	Name    string     `json:"name"`
	Items   []*CgItems `json:"items"`
	Require []string   `json:"require,omitempty"`
}

func (c *CgCatalog) String() string {
	return c.Name + "(" + c.Version + ")"
}

// CgItems definition.
type CgItems struct {
	Class           string            `json:"class"`
	Name            string            `json:"name"`
	StartTime       string            `json:"startTime"`
	EndTime         string            `json:"endTime"`
	Center          string            `json:"center"`
	TrajectoryFrame string            `json:"trajectoryFrame"`
	Trajectory      *CgTrajectory     `json:"trajectory,omitempty"`
	Label           *CgLabel          `json:"label,omitempty"`
	TrajectoryPlot  *CgTrajectoryPlot `json:"trajectoryPlot,omitempty"`
}

// CgTrajectory definition.
type CgTrajectory struct {
	Type   string `json:"type,omitempty"`
	Source string `json:"source,omitempty"`
}

// Validate validates a CgTrajectory.
func (t *CgTrajectory) Validate() error {
	if t.Type != "InterpolatedStates" || !strings.HasSuffix(t.Source, "xyzv") {
		return errors.New("only InterpolatedStates are currently supported in Cosmographia trajectory types")
	}
	return nil
}

// CgLabel definition.
type CgLabel struct {
	Color    []float64 `json:"color,omitempty"`
	FadeSize int       `json:"fadeSize,omitempty"`
	ShowText bool      `json:"showText,omitempty"`
}

// CgTrajectoryPlot definition.
type CgTrajectoryPlot struct {
	Color       []float64 `json:"color,omitempty"`
	LineWidth   int       `json:"lineWidth,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	Lead        string    `json:"lead,omitempty"`
	Fade        int       `json:"fade,omitempty"`
	SampleCount int       `json:"sampleCount,omitempty"`
}

// CgInterpolatedState is one record of an xyzv trajectory.
type CgInterpolatedState struct {
	JD       float64
	Position r3.Vec // km
	Velocity r3.Vec // km/s
}

// ToText converts to text for written output.
func (i CgInterpolatedState) ToText() string {
	return fmt.Sprintf("%.9f %f %f %f %f %f %f", i.JD, i.Position.X, i.Position.Y, i.Position.Z, i.Velocity.X, i.Velocity.Y, i.Velocity.Z)
}

// ReadTrajectory reads back the records of an xyzv trajectory, skipping the
// comment lines.
func ReadTrajectory(r io.Reader) ([]CgInterpolatedState, error) {
	cr := csv.NewReader(r)
	cr.Comma = ' '
	cr.Comment = '#'
	cr.FieldsPerRecord = 7
	var states []CgInterpolatedState
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return states, nil
		}
		if err != nil {
			return nil, err
		}
		var vals [7]float64
		for k := range vals {
			if vals[k], err = strconv.ParseFloat(record[k], 64); err != nil {
				line, _ := cr.FieldPos(k)
				return nil, fmt.Errorf("trajectory line %d: %w", line, err)
			}
		}
		states = append(states, CgInterpolatedState{
			JD:       vals[0],
			Position: r3.Vec{X: vals[1], Y: vals[2], Z: vals[3]},
			Velocity: r3.Vec{X: vals[4], Y: vals[5], Z: vals[6]},
		})
	}
}

// ExportConfig configures the exporting of the simulation.
type ExportConfig struct {
	Dir      string    // output directory, defaults to the working directory
	Filename string    // base name of the files
	Name     string    // vehicle name in the Cosmographia catalog
	Center   string    // central body name in the Cosmographia catalog
	Cosmo    bool      // write a Cosmographia xyzv trajectory and catalog
	AsCSV    bool      // write a CSV of the flight parameters
	Every    float64   // s of simulation time between two records, zero keeps every tick
	Epoch    time.Time // UTC date of the simulation start
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.Cosmo && !c.AsCSV
}

func (c ExportConfig) path(prefix, ext string) string {
	dir := c.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", prefix, c.Filename, ext))
}

// dateOf returns the UTC date of a simulation time.
func (c ExportConfig) dateOf(t float64) time.Time {
	return c.Epoch.UTC().Add(time.Duration(t * float64(time.Second)))
}

const csvHeader = "time,altitude,speed,stage,fuel,mass,gload,apoapsis,periapsis,events"

// StreamSnapshots writes the snapshots of the channel until it is closed.
// Snapshots carrying separation events are always written; the others are
// downsampled to one every conf.Every seconds.
func StreamSnapshots(conf ExportConfig, snapChan <-chan Snapshot) error {
	if conf.IsUseless() {
		for range snapChan {
		}
		return nil
	}
	var fCosmo, fCSV *os.File
	var err error
	if conf.Cosmo {
		if fCosmo, err = os.Create(conf.path("traj", "xyzv")); err != nil {
			return err
		}
		defer fCosmo.Close()
		fmt.Fprintf(fCosmo, `# Creation date (UTC): %s
# Records are <jd> <x> <y> <z> <vel x> <vel y> <vel z>
#   Time is a UTC Julian date
#   Position in km
#   Velocity in km/sec
#   Simulation time start (UTC): %s`, time.Now().UTC(), conf.Epoch.UTC())
	}
	if conf.AsCSV {
		if fCSV, err = os.Create(conf.path("flight", "csv")); err != nil {
			return err
		}
		defer fCSV.Close()
		fmt.Fprintf(fCSV, "# Simulation time start (UTC): %s\n%s", conf.Epoch.UTC(), csvHeader)
	}

	var first, prev *Snapshot
	for snap := range snapChan {
		if prev != nil && len(snap.Events) == 0 && snap.Time-prev.Time < conf.Every {
			continue
		}
		if first == nil {
			first = &snap
		}
		prev = &snap
		if fCosmo != nil {
			asTxt := CgInterpolatedState{
				JD:       julian.TimeToJD(conf.dateOf(snap.Time)),
				Position: r3.Scale(1e-3, snap.Position),
				Velocity: r3.Scale(1e-3, snap.Velocity),
			}
			if _, err := fCosmo.WriteString("\n" + asTxt.ToText()); err != nil {
				return err
			}
		}
		if fCSV != nil {
			if _, err := fCSV.WriteString("\n" + csvRecord(snap)); err != nil {
				return err
			}
		}
	}
	if prev == nil {
		return nil
	}
	end := conf.dateOf(prev.Time)
	if fCosmo != nil {
		fmt.Fprintf(fCosmo, "\n# Simulation time end (UTC): %s\n", end)
		if err := writeCatalog(conf, conf.dateOf(first.Time), end); err != nil {
			return err
		}
	}
	if fCSV != nil {
		fmt.Fprintf(fCSV, "\n# Simulation time end (UTC): %s\n", end)
	}
	return nil
}

func csvRecord(s Snapshot) string {
	events := make([]string, len(s.Events))
	for i, ev := range s.Events {
		events[i] = ev.Kind.String()
	}
	return fmt.Sprintf("%.3f,%.3f,%.3f,%s,%.3f,%.3f,%.3f,%.3f,%.3f,%s",
		s.Time, s.Altitude, s.Speed, s.Stage.Name(), s.FuelPercent, s.Mass, s.GLoad,
		s.Orbit.ApoapsisAltitude, s.Orbit.PeriapsisAltitude, strings.Join(events, ";"))
}

func writeCatalog(conf ExportConfig, start, end time.Time) error {
	color := []float64{0.6, 1, 1}
	name := conf.Name
	if name == "" {
		name = conf.Filename
	}
	center := conf.Center
	if center == "" {
		center = "Earth"
	}
	traj := CgTrajectory{Type: "InterpolatedStates", Source: filepath.Base(conf.path("traj", "xyzv"))}
	item := &CgItems{
		Class:           "spacecraft",
		Name:            name,
		StartTime:       start.Format(time.RFC3339),
		EndTime:         end.Format(time.RFC3339),
		Center:          center,
		TrajectoryFrame: "ICRF",
		Trajectory:      &traj,
		Label:           &CgLabel{Color: color, FadeSize: 1000000, ShowText: true},
		TrajectoryPlot:  &CgTrajectoryPlot{Color: color, LineWidth: 1, Duration: fmt.Sprintf("%d s", int(end.Sub(start).Seconds())+1), Lead: "0 d", SampleCount: 10},
	}
	c := CgCatalog{Version: "1.0", Name: name, Items: []*CgItems{item}}
	marsh, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(conf.path("catalog", "json"), marsh, 0644)
}
