package convert

import "sync"

// Stage names a step of a conversion or compression.
type Stage string

const (
	StageDispatch  Stage = "dispatch"
	StageDecode    Stage = "decode"
	StageTransform Stage = "transform"
	StageEncode    Stage = "encode"
	StageRetry     Stage = "retry"
	StageDone      Stage = "done"
)

// Event is one progress signal. Percent never decreases within one item.
type Event struct {
	ItemID  string `json:"item_id"`
	Stage   Stage  `json:"stage"`
	Percent int    `json:"percent"`
}

// Observer receives progress events.
type Observer interface {
	OnProgress(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnProgress(e Event) { f(e) }

// Observers fans one event out to several observers.
type Observers []Observer

func (o Observers) OnProgress(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnProgress(e)
		}
	}
}

// Tracker forwards events for one item, dropping any that would move
// progress backwards.
type Tracker struct {
	itemID string
	obs    Observer

	mu      sync.Mutex
	last    int
	emitted bool
}

func NewTracker(itemID string, obs Observer) *Tracker {
	return &Tracker{itemID: itemID, obs: obs}
}

func (t *Tracker) Emit(stage Stage, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	t.mu.Lock()
	if t.emitted && percent <= t.last {
		t.mu.Unlock()
		return
	}
	t.last, t.emitted = percent, true
	t.mu.Unlock()

	if t.obs != nil {
		t.obs.OnProgress(Event{ItemID: t.itemID, Stage: stage, Percent: percent})
	}
}

// Last returns the highest percent emitted so far.
func (t *Tracker) Last() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
