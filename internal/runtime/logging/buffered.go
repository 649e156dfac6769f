package logging

import "sync"

// Level orders ServiceLogger severities for the buffered logger.
type Level int

const (
	LevelUnset Level = iota
	TraceLevel
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	CriticalLevel
)

// Resetter is implemented by loggers that keep state between units of work.
type Resetter interface {
	Reset()
}

// ResettableLogger is a ServiceLogger that can be reset between queue messages.
type ResettableLogger interface {
	ServiceLogger
	Resetter
}

// BufferOptions configures NewBufferedServiceLogger.
type BufferOptions struct {
	// ActionLevel is the severity that flushes the buffer. Defaults to ErrorLevel.
	ActionLevel Level
	// BufferSize caps the number of buffered records; the oldest are dropped.
	// Zero keeps every record.
	BufferSize int
	// PassthruLevel, when set, makes Reset write buffered records at or above
	// it instead of discarding them.
	PassthruLevel Level
}

type bufferedRecord struct {
	logger ServiceLogger
	level  Level
	msg    string
	err    error
	fields LogFields
}

type bufferState struct {
	mu        sync.Mutex
	records   []bufferedRecord
	triggered bool
}

// BufferedServiceLogger holds records back until one reaches the action level,
// then writes the backlog and everything after it until Reset. Child loggers
// created with With share the same buffer.
type BufferedServiceLogger struct {
	inner ServiceLogger
	opts  BufferOptions
	state *bufferState
}

var _ ResettableLogger = (*BufferedServiceLogger)(nil)

// NewBufferedServiceLogger wraps inner with a resettable buffer.
func NewBufferedServiceLogger(inner ServiceLogger, opts BufferOptions) *BufferedServiceLogger {
	if inner == nil {
		panic("sentryflow: ServiceLogger cannot be nil")
	}
	if opts.ActionLevel == LevelUnset {
		opts.ActionLevel = ErrorLevel
	}
	return &BufferedServiceLogger{inner: inner, opts: opts, state: &bufferState{}}
}

func (b *BufferedServiceLogger) With(fields LogFields) ServiceLogger {
	return &BufferedServiceLogger{inner: b.inner.With(fields), opts: b.opts, state: b.state}
}

func (b *BufferedServiceLogger) Trace(msg string, fields LogFields) {
	b.handle(bufferedRecord{level: TraceLevel, msg: msg, fields: fields})
}

func (b *BufferedServiceLogger) Debug(msg string, fields LogFields) {
	b.handle(bufferedRecord{level: DebugLevel, msg: msg, fields: fields})
}

func (b *BufferedServiceLogger) Info(msg string, fields LogFields) {
	b.handle(bufferedRecord{level: InfoLevel, msg: msg, fields: fields})
}

func (b *BufferedServiceLogger) Warn(msg string, fields LogFields) {
	b.handle(bufferedRecord{level: WarnLevel, msg: msg, fields: fields})
}

func (b *BufferedServiceLogger) Error(msg string, err error, fields LogFields) {
	b.handle(bufferedRecord{level: ErrorLevel, msg: msg, err: err, fields: fields})
}

func (b *BufferedServiceLogger) Critical(msg string, err error, fields LogFields) {
	b.handle(bufferedRecord{level: CriticalLevel, msg: msg, err: err, fields: fields})
}

// Reset discards the buffered records, or writes those at or above the
// passthru level, and starts buffering again.
func (b *BufferedServiceLogger) Reset() {
	b.state.mu.Lock()
	records := b.state.records
	b.state.records = nil
	b.state.triggered = false
	b.state.mu.Unlock()

	if b.opts.PassthruLevel == LevelUnset {
		return
	}
	for _, rec := range records {
		if rec.level >= b.opts.PassthruLevel {
			rec.write()
		}
	}
}

// Buffered returns the number of records currently held back.
func (b *BufferedServiceLogger) Buffered() int {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()
	return len(b.state.records)
}

func (b *BufferedServiceLogger) handle(rec bufferedRecord) {
	rec.logger = b.inner

	b.state.mu.Lock()
	if b.state.triggered {
		b.state.mu.Unlock()
		rec.write()
		return
	}

	b.state.records = append(b.state.records, rec)
	if over := len(b.state.records) - b.opts.BufferSize; b.opts.BufferSize > 0 && over > 0 {
		// compact in place and clear the freed slots so dropped records can be collected
		n := copy(b.state.records, b.state.records[over:])
		clear(b.state.records[n:])
		b.state.records = b.state.records[:n]
	}
	if rec.level < b.opts.ActionLevel {
		b.state.mu.Unlock()
		return
	}

	records := b.state.records
	b.state.records = nil
	b.state.triggered = true
	b.state.mu.Unlock()

	for _, r := range records {
		r.write()
	}
}

func (r bufferedRecord) write() {
	switch r.level {
	case TraceLevel:
		r.logger.Trace(r.msg, r.fields)
	case DebugLevel:
		r.logger.Debug(r.msg, r.fields)
	case InfoLevel:
		r.logger.Info(r.msg, r.fields)
	case WarnLevel:
		r.logger.Warn(r.msg, r.fields)
	case ErrorLevel:
		r.logger.Error(r.msg, r.err, r.fields)
	default:
		r.logger.Critical(r.msg, r.err, r.fields)
	}
}
