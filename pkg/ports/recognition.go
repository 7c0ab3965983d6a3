package ports

import (
	"context"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
)

// SessionView is the read-only view of a session handed to recognition stages.
type SessionView interface {
	ID() string
	CurrentState() string
	Get(key string) (any, bool)
}

// Recognizer turns raw user input into a recognized event.
//
// Train is called once, before any Recognize call. Recognize must be safe for
// concurrent use afterwards. A recognizer that understands nothing returns an
// event for domain.DefaultFallbackIntent; errors are reserved for failures of
// the backend itself (unreachable service, rejected credentials, quota).
type Recognizer interface {
	Name() string
	Train(ctx context.Context, intents []*domain.EventDefinition) error
	Recognize(ctx context.Context, input string, session SessionView) (*domain.RecognizedEvent, error)
	Shutdown(ctx context.Context) error
}

// PreProcessor transforms raw input before it reaches the Recognizer.
// session may be nil.
type PreProcessor interface {
	Name() string
	PreProcess(input string, session SessionView) string
}

// PostProcessor transforms a recognized event. It may return the event it was
// given or a modified copy. session may be nil.
type PostProcessor interface {
	Name() string
	PostProcess(event *domain.RecognizedEvent, session SessionView) *domain.RecognizedEvent
}

// RecognitionRecord describes a single recognition call.
type RecognitionRecord struct {
	Timestamp  time.Time
	SessionID  string
	State      string
	Input      string
	Processed  string
	Event      string
	Confidence float64
	Latency    time.Duration
	Err        error
}

// Monitor observes recognition calls. It never influences the recognized event.
type Monitor interface {
	Observe(ctx context.Context, rec RecognitionRecord)
	Close() error
}
