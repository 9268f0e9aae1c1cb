package progress

import (
	"encoding/json"
	"sync"
	"time"
)

// Stage represents the current stage of a pack operation
type Stage string

const (
	StageInitializing  Stage = "initializing"
	StageConverting    Stage = "converting"
	StageSelecting     Stage = "selecting"
	StageMaterializing Stage = "materializing"
	StageComplete      Stage = "complete"
	StageError         Stage = "error"
)

// Event represents a progress event
type Event struct {
	Stage       Stage        `json:"stage"`
	Progress    float64      `json:"progress"`
	Message     string       `json:"message"`
	Timestamp   time.Time    `json:"timestamp"`
	SlotDetails *SlotDetails `json:"slotDetails,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// SlotDetails describes the slot currently being written
type SlotDetails struct {
	SlotNumber     int    `json:"slotNumber"`
	TotalSlots     int    `json:"totalSlots"`
	ProcessedSlots int    `json:"processedSlots"`
	Source         string `json:"source"`
}

// Tracker fans progress events out to listeners
type Tracker struct {
	mu          sync.RWMutex
	stage       Stage
	progress    float64
	message     string
	slotDetails *SlotDetails
	err         error
	listeners   []func(Event)
}

// NewTracker creates a new Tracker instance
func NewTracker() *Tracker {
	return &Tracker{
		stage:     StageInitializing,
		listeners: make([]func(Event), 0),
	}
}

// AddListener adds a new progress event listener
func (pt *Tracker) AddListener(listener func(Event)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.listeners = append(pt.listeners, listener)
}

// Update records a stage change and notifies all listeners
func (pt *Tracker) Update(stage Stage, progress float64, message string) {
	pt.mu.Lock()
	pt.stage = stage
	pt.progress = progress
	pt.message = message
	pt.mu.Unlock()

	pt.notifyListeners(Event{
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// UpdateSlot records progress for a single slot
func (pt *Tracker) UpdateSlot(slotNumber, totalSlots, processedSlots int, source string) {
	details := &SlotDetails{
		SlotNumber:     slotNumber,
		TotalSlots:     totalSlots,
		ProcessedSlots: processedSlots,
		Source:         source,
	}

	pt.mu.Lock()
	pt.slotDetails = details
	if totalSlots > 0 {
		pt.progress = float64(processedSlots) / float64(totalSlots) * 100
	}
	event := Event{
		Stage:       pt.stage,
		Progress:    pt.progress,
		Message:     pt.message,
		Timestamp:   time.Now(),
		SlotDetails: details,
	}
	pt.mu.Unlock()

	pt.notifyListeners(event)
}

// SetError sets an error state and notifies all listeners
func (pt *Tracker) SetError(err error) {
	pt.mu.Lock()
	pt.stage = StageError
	pt.err = err
	progress := pt.progress
	pt.mu.Unlock()

	pt.notifyListeners(Event{
		Stage:     StageError,
		Progress:  progress,
		Message:   err.Error(),
		Timestamp: time.Now(),
		Error:     err.Error(),
	})
}

// notifyListeners sends an event to all registered listeners
func (pt *Tracker) notifyListeners(event Event) {
	pt.mu.RLock()
	listeners := append(([]func(Event))(nil), pt.listeners...)
	pt.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// CurrentState returns the current progress state
func (pt *Tracker) CurrentState() Event {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	event := Event{
		Stage:       pt.stage,
		Progress:    pt.progress,
		Message:     pt.message,
		Timestamp:   time.Now(),
		SlotDetails: pt.slotDetails,
	}
	if pt.err != nil {
		event.Error = pt.err.Error()
	}
	return event
}

// MarshalJSON implements json.Marshaler for Event
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Alias:     (*Alias)(&e),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = t
	return nil
}
