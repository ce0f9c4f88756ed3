package health

import (
	"context"
	"fmt"
	"slices"

	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// EngineChecker verifies that the engines a pipeline needs are registered and
// that the codec engine can open the configured codecs.
type EngineChecker struct {
	codecEngine  string
	formatEngine string
	codecs       []string
}

// NewEngineChecker creates a checker for the named engines. Empty names are
// skipped.
func NewEngineChecker(codecEngine, formatEngine string, codecs ...string) *EngineChecker {
	return &EngineChecker{
		codecEngine:  codecEngine,
		formatEngine: formatEngine,
		codecs:       codecs,
	}
}

// Name returns the name of the checker.
func (e *EngineChecker) Name() string {
	return "engines"
}

// Check performs the engine availability check.
func (e *EngineChecker) Check(ctx context.Context) error {
	if e.formatEngine != "" {
		if _, err := engine.Format(e.formatEngine); err != nil {
			return err
		}
	}
	if e.codecEngine == "" {
		return nil
	}

	ce, err := engine.Codec(e.codecEngine)
	if err != nil {
		return err
	}
	available := ce.Codecs()
	var missing []string
	for _, c := range e.codecs {
		if c != "" && !slices.Contains(available, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("codec engine %s is missing codecs: %v", e.codecEngine, missing)
	}
	return nil
}

// Details lists the registered engines.
func (e *EngineChecker) Details() map[string]interface{} {
	return map[string]interface{}{
		"codec_engines":  engine.Codecs(),
		"format_engines": engine.Formats(),
	}
}

// PayloadChecker reports media payloads that are still referenced. A steadily
// growing count points at a buffer that was never cleared.
type PayloadChecker struct {
	limit int64
}

// NewPayloadChecker reports degraded once more than limit payloads are
// live. A limit of zero only reports.
func NewPayloadChecker(limit int64) *PayloadChecker {
	return &PayloadChecker{limit: limit}
}

// Name returns the name of the checker.
func (p *PayloadChecker) Name() string {
	return "payloads"
}

// Check performs the payload leak check.
func (p *PayloadChecker) Check(ctx context.Context) error {
	if live := media.LivePayloads(); p.limit > 0 && live > p.limit {
		return Degraded("%d payloads live, limit %d", live, p.limit)
	}
	return nil
}

// Details reports the payload counters.
func (p *PayloadChecker) Details() map[string]interface{} {
	return map[string]interface{}{
		"live":      media.LivePayloads(),
		"allocated": media.TotalPayloads(),
	}
}
