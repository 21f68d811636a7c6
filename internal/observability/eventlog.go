package observability

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
)

// EventLog collects the per-request stage log that is returned to the caller.
// Every entry is mirrored to the process logger.
type EventLog struct {
	mu      sync.Mutex
	entries []schemas.LogEntry
	logger  *zap.Logger
	now     func() time.Time
}

// NewEventLog creates an empty log that mirrors entries to logger.
func NewEventLog(logger *zap.Logger) *EventLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLog{logger: logger, now: time.Now}
}

// Add appends an entry. data may be nil.
func (l *EventLog) Add(stage, msg string, data map[string]any) {
	entry := schemas.LogEntry{TS: l.now().UTC(), Stage: stage, Msg: msg, Data: data}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	fields := make([]zap.Field, 0, len(data)+1)
	fields = append(fields, zap.String("stage", stage))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}
	if stage == StageError {
		l.logger.Error(msg, fields...)
		return
	}
	l.logger.Info(msg, fields...)
}

// Entries returns a copy of the entries recorded so far.
func (l *EventLog) Entries() []schemas.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]schemas.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Stage names used in the event log.
const (
	StageFillStart     = "FILL_START"
	StagePlanInvalid   = "PLAN_INVALID"
	StagePortalInvalid = "PORTAL_INVALID"
	StageNavigate      = "NAV_GOTO"
	StageCaptcha       = "CAPTCHA"
	StageFill          = "FILL"
	StageSubmit        = "SUBMIT"
	StageHarvest       = "HARVEST"
	StageDone          = "DONE"
	StageError         = "ERROR"
)
