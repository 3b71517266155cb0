// Package recovery maps every classified pipeline failure to one concrete,
// user-actionable recovery strategy, decoupling what failed from what the UI
// does about it. Classification is total: unknown errors get a generic
// alert, nothing is ever dropped silently.
package recovery

import (
	"time"

	"github.com/voicetra/pipeline/translation"
)

// Engine classifies errors and keeps a bounded audit trail of every
// classification. The mapping itself is stateless and deterministic; only
// the audit log mutates.
type Engine struct {
	audit *auditLog
}

// NewEngine creates an engine with an in-memory audit ring. Use
// SetAuditFile to additionally persist classifications.
func NewEngine() *Engine {
	return &Engine{audit: newAuditLog()}
}

// SetAuditFile enables best-effort persistence of classifications to an
// append-only log file. Log I/O failures never propagate to Classify.
func (e *Engine) SetAuditFile(path string) error {
	return e.audit.setFile(path)
}

// Close stops the audit worker and flushes the file log.
func (e *Engine) Close() {
	e.audit.close()
}

// Records returns a copy of the retained audit records, oldest first.
func (e *Engine) Records() []Record {
	return e.audit.records()
}

// Classify maps any error to its recovery strategy. It never returns a
// zero strategy: errors outside the taxonomy map to a generic alert with
// retry and cancel. Every call is appended to the audit log as a side
// effect.
func (e *Engine) Classify(err error) Strategy {
	strategy := classify(err)
	e.audit.append(err, strategy)
	return strategy
}

// classify is the pure mapping from taxonomy kind to strategy.
func classify(err error) Strategy {
	perr, ok := translation.AsPipelineError(err)
	if !ok {
		return alertStrategy("Translation Failed",
			"Something went wrong. Please try again.",
			ActionRetry, ActionCancel)
	}

	switch perr.Kind {
	case translation.KindRecognizerUnavailable:
		return fallbackStrategy(FallbackManualInput,
			"Speech recognition is unavailable. You can type your text instead.")

	case translation.KindNoSpeechDetected:
		return toastStrategy("No speech detected. Try speaking again.", 3*time.Second)

	case translation.KindPermissionDenied:
		return Strategy{
			Kind:       StrategyRequestPermission,
			Permission: PermissionMicrophone,
			Message:    "Microphone access is needed to translate your speech. You can enable it in Settings.",
			Actions:    []UserAction{ActionOpenSettings, ActionCancel},
		}

	case translation.KindNotConnected:
		return offlineStrategy("You're offline. Showing saved translations.")

	case translation.KindTimeout:
		return retryStrategy(2*time.Second, 3)

	case translation.KindConnectionLost:
		return queueForLaterStrategy("Connection lost. Your translation will be sent when you're back online.")

	case translation.KindHostUnreachable:
		return fallbackStrategy(FallbackAlternateEndpoint,
			"The translation service can't be reached. Trying an alternate server.")

	case translation.KindCredentialInvalid:
		return Strategy{
			Kind:    StrategyRequestCredential,
			Message: "Your session has expired. Please sign in again.",
			Actions: []UserAction{ActionEnterCredential, ActionCancel},
		}

	case translation.KindRateLimitExceeded:
		s := queueForLaterStrategy(countdownMessage(perr.RetryAfter))
		s.Delay = perr.RetryAfter
		return s

	case translation.KindTextTooLong:
		return Strategy{
			Kind:      StrategySplitAndRetry,
			ChunkSize: translation.DefaultChunkSize,
			Message:   "The text is too long for one request and will be translated in parts.",
			Actions:   []UserAction{ActionRetry, ActionCancel},
		}

	case translation.KindServerError:
		if perr.StatusCode >= 500 {
			return retryStrategy(10*time.Second, 3)
		}
		return alertStrategy("Translation Failed",
			"The translation service rejected the request.",
			ActionRetry, ActionCancel)

	case translation.KindSynthesisFailed:
		return fallbackStrategy(FallbackSimplifiedSpeech,
			"Audio couldn't be generated. Showing the text translation.")

	case translation.KindInputInvalid:
		return alertStrategy("Nothing to Translate",
			"Enter or speak some text to translate.",
			ActionCancel)

	case translation.KindQueueFull:
		return alertStrategy("Too Many Pending Translations",
			"Please wait for the current translations to finish.",
			ActionRetry, ActionCancel)

	case translation.KindCancelled:
		// Cancelled by the user: nothing to recover, nothing to show.
		return toastStrategy("Translation cancelled.", 2*time.Second)

	case translation.KindResponseInvalid:
		return alertStrategy("Translation Failed",
			"The service returned an unexpected response. Please try again.",
			ActionRetry, ActionCancel)

	case translation.KindCacheIO:
		return toastStrategy("Saved translations are temporarily unavailable.", 3*time.Second)

	default:
		return alertStrategy("Translation Failed",
			"Something went wrong. Please try again.",
			ActionRetry, ActionCancel)
	}
}
