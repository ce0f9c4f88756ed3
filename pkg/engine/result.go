package engine

// Status classifies the outcome of a per-call engine interaction.
type Status uint8

const (
	// StatusOK means the output buffer holds valid data.
	StatusOK Status = iota
	// StatusRetry means the input was accepted but no output is ready yet.
	// It is the steady-state signal during codec startup latency, not a failure.
	StatusRetry
	// StatusEndOfStream means no more output will ever be produced.
	StatusEndOfStream
	// StatusFatal means the engine failed; Code carries the reason.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRetry:
		return "retry"
	case StatusEndOfStream:
		return "end_of_stream"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Result is the typed outcome returned by data-path calls. Misuse and
// configuration problems are reported as errors instead.
type Result struct {
	Status Status
	Code   Code
}

// Predefined results.
var (
	ResultOK          = Result{Status: StatusOK, Code: OK}
	ResultRetry       = Result{Status: StatusRetry, Code: Again}
	ResultEndOfStream = Result{Status: StatusEndOfStream, Code: EOF}
)

// Fatal returns a fatal result carrying code.
func Fatal(code Code) Result {
	return Result{Status: StatusFatal, Code: code}
}

// ResultOf classifies an engine return code.
func ResultOf(code Code) Result {
	switch {
	case code >= 0:
		return ResultOK
	case code == Again:
		return ResultRetry
	case code == EOF:
		return ResultEndOfStream
	default:
		return Fatal(code)
	}
}

// OK reports whether the call produced output.
func (r Result) OK() bool { return r.Status == StatusOK }

// Retry reports whether the caller should supply more input.
func (r Result) Retry() bool { return r.Status == StatusRetry }

// EndOfStream reports whether the stage is exhausted.
func (r Result) EndOfStream() bool { return r.Status == StatusEndOfStream }

// Fatal reports whether the engine failed.
func (r Result) Fatal() bool { return r.Status == StatusFatal }

func (r Result) String() string {
	if r.Status == StatusFatal {
		return r.Status.String() + "(" + r.Code.String() + ")"
	}
	return r.Status.String()
}
