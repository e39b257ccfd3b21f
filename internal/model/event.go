package model

// EventType is the tag carried by every engine event.
type EventType string

const (
	EventConflictDetected   EventType = "conflict-detected"
	EventConflictResolved   EventType = "conflict-resolved"
	EventDetectionStarted   EventType = "detection-started"
	EventDetectionCompleted EventType = "detection-completed"
	EventError              EventType = "error"
)

// Event is the closed set of lifecycle notifications emitted by the engine.
// Only the variants in this package implement it.
type Event interface {
	Type() EventType
	isEvent()
}

// ConflictDetected is emitted as soon as a new conflict is registered.
type ConflictDetected struct {
	Conflict Conflict
}

// ConflictResolved is emitted after a resolution was applied and recorded.
type ConflictResolved struct {
	Conflict   Conflict
	Resolution Resolution
}

// DetectionStarted is emitted before any candidate path is checked.
type DetectionStarted struct {
	Paths []string
}

// DetectionCompleted carries the full result of a detection run.
type DetectionCompleted struct {
	Result DetectionResult
}

// ErrorEvent reports a per-path detection failure or a failed resolution.
// ConflictID is empty for detection failures.
type ErrorEvent struct {
	Path       string
	ConflictID string
	Message    string
}

func (ConflictDetected) Type() EventType   { return EventConflictDetected }
func (ConflictResolved) Type() EventType   { return EventConflictResolved }
func (DetectionStarted) Type() EventType   { return EventDetectionStarted }
func (DetectionCompleted) Type() EventType { return EventDetectionCompleted }
func (ErrorEvent) Type() EventType         { return EventError }

func (ConflictDetected) isEvent()   {}
func (ConflictResolved) isEvent()   {}
func (DetectionStarted) isEvent()   {}
func (DetectionCompleted) isEvent() {}
func (ErrorEvent) isEvent()         {}
