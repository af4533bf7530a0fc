package convert

import (
	"fmt"
	"time"
)

// EventKind identifies a controller notification
type EventKind int

const (
	EventScanStarted EventKind = iota
	EventFileDiscovered
	EventScanCompleted
	EventScanError
	EventConversionStarted
	EventStatusChanged
	EventProgressChanged
	EventWorkersChanged
	EventRunCompleted
	EventRunStopped
	EventRunError
)

func (k EventKind) String() string {
	switch k {
	case EventScanStarted:
		return "scan-started"
	case EventFileDiscovered:
		return "file-discovered"
	case EventScanCompleted:
		return "scan-completed"
	case EventScanError:
		return "scan-error"
	case EventConversionStarted:
		return "conversion-started"
	case EventStatusChanged:
		return "status-changed"
	case EventProgressChanged:
		return "progress-changed"
	case EventWorkersChanged:
		return "workers-changed"
	case EventRunCompleted:
		return "run-completed"
	case EventRunStopped:
		return "run-stopped"
	case EventRunError:
		return "run-error"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is delivered to the Observer in order. Which fields are set
// depends on Kind:
//
//	FileDiscovered:     Path, Count, Bytes
//	ScanCompleted:      Count, Bytes
//	StatusChanged:      Path, Status, Message, Progress
//	ProgressChanged:    Path, Percent
//	WorkersChanged:     Count
//	Run*, Scan errors:  Message, Progress
type Event struct {
	Kind     EventKind
	Seq      int64
	Time     time.Time
	RunID    string
	Path     string
	Status   Status
	Percent  int
	Count    int
	Bytes    int64
	Message  string
	Progress AggregateProgress
}

// Observer receives controller events. It is called from the controller's
// own goroutine and must not call back into the Controller synchronously.
type Observer func(Event)
