// Package recorder stores the flight of a simulation in a SQL database so a
// run can be inspected or resumed later.
package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ChristopherRabotin/ascent"
	"github.com/glebarez/sqlite"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNoState is returned when a run has no saved state.
var ErrNoState = errors.New("no saved state")

// Run is a recorded simulation.
type Run struct {
	gorm.Model
	Vehicle string         `json:"vehicle" gorm:"size:64"`
	Epoch   time.Time      `json:"epoch"`
	Config  datatypes.JSON `json:"config"`
}

// Frame is a downsampled snapshot of a run.
type Frame struct {
	ID       uint    `gorm:"primarykey"`
	RunID    uint    `json:"runId" gorm:"index:idx_frame_run"`
	Tick     uint64  `json:"tick"`
	Time     float64 `json:"time"`
	Stage    string  `json:"stage" gorm:"size:32"`
	Altitude float64 `json:"altitude"`
	Speed    float64 `json:"speed"`
	Fuel     float64 `json:"fuel"`
	Mass     float64 `json:"mass"`
	GLoad    float64 `json:"gload"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	VX       float64 `json:"vx"`
	VY       float64 `json:"vy"`
	VZ       float64 `json:"vz"`
	Faults   int     `json:"faults"`
}

// Separation is a separation event of a run.
type Separation struct {
	ID         uint    `gorm:"primarykey"`
	RunID      uint    `json:"runId" gorm:"index:idx_separation_run"`
	Kind       string  `json:"kind" gorm:"size:32"`
	Components string  `json:"components" gorm:"size:64"`
	Time       float64 `json:"time"`
	Altitude   float64 `json:"altitude"`
	Speed      float64 `json:"speed"`
	Commanded  bool    `json:"commanded"`
}

// SavedState is a full vehicle state from which a run can be resumed.
type SavedState struct {
	ID    uint           `gorm:"primarykey"`
	RunID uint           `json:"runId" gorm:"index:idx_state_run"`
	Time  float64        `json:"time"`
	Stage string         `json:"stage" gorm:"size:32"`
	State datatypes.JSON `json:"state"`
}

// Models lists every table of the recorder.
var Models = []interface{}{&Run{}, &Frame{}, &Separation{}, &SavedState{}}

// Open connects to postgres when the DSN is a postgres URL, and to sqlite
// otherwise. An empty DSN opens a private in-memory sqlite database. The
// tables are migrated before returning.
func Open(dsn string) (*gorm.DB, error) {
	conf := &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	}
	var db *gorm.DB
	var err error
	memory := false
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), conf)
	default:
		if dsn == "" || dsn == ":memory:" {
			dsn, memory = ":memory:", true
		}
		db, err = gorm.Open(sqlite.Open(dsn), conf)
	}
	if err != nil {
		return nil, err
	}
	if memory {
		// Every connection to ":memory:" is a distinct database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("migrating recorder tables: %w", err)
	}
	return db, nil
}

// Recorder stores the snapshots of one run. Observe is meant to be installed
// as a simulation listener.
type Recorder struct {
	db     *gorm.DB
	run    Run
	every  float64
	last   float64
	seen   bool
	err    error
	logger log.Logger
}

// New creates a run and returns its recorder. A frame is stored every
// `every` seconds of simulation time, and on every separation.
func New(db *gorm.DB, vehicle string, epoch time.Time, cfg ascent.Config, every float64, logger log.Logger) (*Recorder, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	conf, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	r := &Recorder{db: db, every: every, logger: logger}
	r.run = Run{Vehicle: vehicle, Epoch: epoch.UTC(), Config: datatypes.JSON(conf)}
	if err := db.Create(&r.run).Error; err != nil {
		return nil, err
	}
	level.Info(logger).Log("subsys", "recorder", "run", r.run.ID, "vehicle", vehicle)
	return r, nil
}

// RunID returns the identifier of the recorded run.
func (r *Recorder) RunID() uint {
	return r.run.ID
}

// Err returns the first error encountered by Observe.
func (r *Recorder) Err() error {
	return r.err
}

// Observe stores the snapshot if it is due or carries separation events.
func (r *Recorder) Observe(s ascent.Snapshot) {
	if r.seen && len(s.Events) == 0 && s.Time-r.last < r.every {
		return
	}
	r.seen, r.last = true, s.Time
	frame := Frame{
		RunID:    r.run.ID,
		Tick:     s.Tick,
		Time:     s.Time,
		Stage:    s.Stage.Name(),
		Altitude: s.Altitude,
		Speed:    s.Speed,
		Fuel:     s.FuelPercent,
		Mass:     s.Mass,
		GLoad:    s.GLoad,
		X:        s.Position.X,
		Y:        s.Position.Y,
		Z:        s.Position.Z,
		VX:       s.Velocity.X,
		VY:       s.Velocity.Y,
		VZ:       s.Velocity.Z,
		Faults:   len(s.Faults),
	}
	r.fail(r.db.Create(&frame).Error)
	for _, ev := range s.Events {
		comps := make([]string, len(ev.Components))
		for i, c := range ev.Components {
			comps[i] = c.String()
		}
		sep := Separation{
			RunID:      r.run.ID,
			Kind:       ev.Kind.String(),
			Components: strings.Join(comps, ","),
			Time:       ev.Time,
			Altitude:   ev.Altitude,
			Speed:      ev.Speed,
			Commanded:  ev.Commanded,
		}
		r.fail(r.db.Create(&sep).Error)
	}
}

func (r *Recorder) fail(err error) {
	if err == nil {
		return
	}
	level.Error(r.logger).Log("subsys", "recorder", "run", r.run.ID, "err", err)
	if r.err == nil {
		r.err = err
	}
}

// SaveState stores the full vehicle state.
func (r *Recorder) SaveState(st ascent.VehicleState) error {
	data, err := ascent.MarshalState(st)
	if err != nil {
		return err
	}
	return r.db.Create(&SavedState{RunID: r.run.ID, Time: st.Time, Stage: st.Stage.Name(), State: datatypes.JSON(data)}).Error
}

// LatestState returns the last state saved for a run.
func LatestState(db *gorm.DB, runID uint) (ascent.VehicleState, error) {
	var saved SavedState
	err := db.Where("run_id = ?", runID).Order("id desc").Limit(1).Find(&saved).Error
	if err != nil {
		return ascent.VehicleState{}, err
	}
	if saved.ID == 0 {
		return ascent.VehicleState{}, fmt.Errorf("run %d: %w", runID, ErrNoState)
	}
	return ascent.UnmarshalState(saved.State)
}

// LatestRun returns the most recent run.
func LatestRun(db *gorm.DB) (Run, error) {
	var run Run
	if err := db.Order("id desc").First(&run).Error; err != nil {
		return Run{}, err
	}
	return run, nil
}

// RunConfig decodes the configuration a run was recorded with.
func RunConfig(run Run) (ascent.Config, error) {
	var cfg ascent.Config
	if err := json.Unmarshal(run.Config, &cfg); err != nil {
		return ascent.Config{}, err
	}
	return cfg, cfg.Validate()
}

// Frames returns the frames of a run in order.
func Frames(db *gorm.DB, runID uint) ([]Frame, error) {
	var frames []Frame
	err := db.Where("run_id = ?", runID).Order("tick asc").Find(&frames).Error
	return frames, err
}

// Separations returns the separations of a run in order.
func Separations(db *gorm.DB, runID uint) ([]Separation, error) {
	var seps []Separation
	err := db.Where("run_id = ?", runID).Order("id asc").Find(&seps).Error
	return seps, err
}
