package noticebus

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Event envelopes a published payload with the metadata a Processor routes
// on: an id, a name derived from the payload's Go type, and a timestamp.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent wraps payload in an Event, deriving Name from payload's type.
//
//	NewEvent(WorkerTimeout{WorkerID: 3}).Name == "WorkerTimeout"
func NewEvent(payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      typeName(payload),
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}
