package epidemic

import (
	"fmt"
	"io"
)

// DayReport describes the population at a day boundary. Population aliases
// the live slice and must not be modified or retained by observers.
type DayReport struct {
	Day        int
	Active     int
	Total      int
	Census     Census
	Population Population
}

// Observer receives progress callbacks from Run, in order:
// DayEnded(0), then per day DayStarted, Infected*, DayEnded, and finally
// Finished.
type Observer interface {
	DayStarted(d DayReport)
	Infected(ev Infection)
	DayEnded(d DayReport)
	Finished(r Result)
}

// NopObserver can be embedded to implement only some callbacks.
type NopObserver struct{}

func (NopObserver) DayStarted(DayReport) {}
func (NopObserver) Infected(Infection)   {}
func (NopObserver) DayEnded(DayReport)   {}
func (NopObserver) Finished(Result)      {}

type MultiObserver []Observer

func (m MultiObserver) DayStarted(d DayReport) {
	for _, o := range m {
		o.DayStarted(d)
	}
}

func (m MultiObserver) Infected(ev Infection) {
	for _, o := range m {
		o.Infected(ev)
	}
}

func (m MultiObserver) DayEnded(d DayReport) {
	for _, o := range m {
		o.DayEnded(d)
	}
}

func (m MultiObserver) Finished(r Result) {
	for _, o := range m {
		o.Finished(r)
	}
}

// TextObserver writes the per-day and per-infection progress lines.
type TextObserver struct {
	NopObserver
	W io.Writer
}

func (t TextObserver) DayStarted(d DayReport) {
	fmt.Fprintf(t.W, "Day %d: %d of %d agents infected.\n", d.Day, d.Active, len(d.Population))
}

func (t TextObserver) Infected(ev Infection) {
	fmt.Fprintf(t.W, "  Agent %d infected by agent %d.\n", ev.Agent, ev.By)
}
