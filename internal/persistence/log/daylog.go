package log

import (
	"encoding/json"
	"fmt"

	"seirsim.dev/internal/sim/digest"
	"seirsim.dev/internal/sim/epidemic"
)

const (
	KindHeader = "header"
	KindDay    = "day"
	KindResult = "result"

	dayLogPrefix = "events"
)

type Entry struct {
	Kind string `json:"kind"`

	Seed   int64            `json:"seed,omitempty"`
	Config *epidemic.Config `json:"config,omitempty"`

	Day    int                  `json:"day"`
	Active int                  `json:"active"`
	Total  int                  `json:"total"`
	Census *epidemic.Census     `json:"census,omitempty"`
	New    []epidemic.Infection `json:"new,omitempty"`
	Digest string               `json:"digest,omitempty"`

	Result *epidemic.Result `json:"result,omitempty"`
}

// DayLogger records a run as one header, one entry per day and a final
// result. It implements epidemic.Observer; the first write error is kept
// and returned by Err and Close.
type DayLogger struct {
	w       *JSONLZstdWriter
	pending []epidemic.Infection
	err     error
}

func NewDayLogger(dir string) *DayLogger {
	return &DayLogger{w: NewJSONLZstdWriter(dir, dayLogPrefix)}
}

func (l *DayLogger) write(e Entry) {
	if l.err != nil {
		return
	}
	l.err = l.w.Write(e)
}

func (l *DayLogger) WriteHeader(seed int64, cfg epidemic.Config) error {
	l.write(Entry{Kind: KindHeader, Seed: seed, Config: &cfg})
	return l.err
}

func (l *DayLogger) DayStarted(epidemic.DayReport) { l.pending = l.pending[:0] }

func (l *DayLogger) Infected(ev epidemic.Infection) { l.pending = append(l.pending, ev) }

func (l *DayLogger) DayEnded(d epidemic.DayReport) {
	census := d.Census
	e := Entry{
		Kind:   KindDay,
		Day:    d.Day,
		Active: d.Active,
		Total:  d.Total,
		Census: &census,
		Digest: digest.Population(d.Day, d.Population),
	}
	if len(l.pending) > 0 {
		e.New = append([]epidemic.Infection(nil), l.pending...)
	}
	l.pending = l.pending[:0]
	l.write(e)
}

func (l *DayLogger) Finished(r epidemic.Result) {
	l.write(Entry{Kind: KindResult, Result: &r})
}

func (l *DayLogger) Err() error { return l.err }

func (l *DayLogger) Close() error {
	if err := l.w.Close(); err != nil && l.err == nil {
		l.err = err
	}
	return l.err
}

// ReadDayLog loads every entry of the day log in dir.
func ReadDayLog(dir string) ([]Entry, error) {
	files, err := ListFiles(dir, dayLogPrefix)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", dayLogPrefix, dir)
	}
	var out []Entry
	for _, path := range files {
		err := ReadJSONL(path, func(line []byte) error {
			var e Entry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
