package recovery

import (
	"fmt"
	"time"
)

// StrategyKind selects the recovery strategy variant.
type StrategyKind string

const (
	StrategyRetry             StrategyKind = "retry"
	StrategyFallback          StrategyKind = "fallback"
	StrategySwitchToOffline   StrategyKind = "switch_to_offline"
	StrategyQueueForLater     StrategyKind = "queue_for_later"
	StrategyAlert             StrategyKind = "alert"
	StrategyToast             StrategyKind = "toast"
	StrategyRequestPermission StrategyKind = "request_permission"
	StrategyRequestCredential StrategyKind = "request_credential"
	StrategySplitAndRetry     StrategyKind = "split_and_retry"
)

// FallbackOption names the reduced-scope alternative a fallback strategy
// offers.
type FallbackOption string

const (
	FallbackManualInput       FallbackOption = "manual_text_input"
	FallbackTextOnly          FallbackOption = "text_only"
	FallbackAlternateEndpoint FallbackOption = "alternate_endpoint"
	FallbackSimplifiedSpeech  FallbackOption = "simplified_speech"
)

// PermissionKind names the permission a request-permission strategy asks for.
type PermissionKind string

const (
	PermissionMicrophone PermissionKind = "microphone"
)

// UserAction is one choice the presentation layer can offer for a strategy.
type UserAction string

const (
	ActionRetry           UserAction = "retry"
	ActionCancel          UserAction = "cancel"
	ActionUseFallback     UserAction = "use_fallback"
	ActionSwitchOffline   UserAction = "switch_offline"
	ActionOpenSettings    UserAction = "open_settings"
	ActionEnterCredential UserAction = "enter_credential"
	ActionDismiss         UserAction = "dismiss"
	ActionWait            UserAction = "wait"
)

// Strategy is the concrete, user-actionable plan for a classified failure.
// Kind selects the variant; the payload fields below apply per variant.
type Strategy struct {
	Kind StrategyKind

	// retry / split_and_retry
	Delay       time.Duration
	MaxAttempts int
	Exponential bool
	ChunkSize   int

	// fallback
	Fallback FallbackOption

	// switch_to_offline
	UseCache bool

	// request_permission
	Permission PermissionKind

	// alert / toast / notifications
	Title         string
	Message       string
	ToastDuration time.Duration

	// Actions the presentation layer offers for this strategy.
	Actions []UserAction
}

// retryStrategy builds the retry variant.
func retryStrategy(delay time.Duration, maxAttempts int) Strategy {
	return Strategy{
		Kind:        StrategyRetry,
		Delay:       delay,
		MaxAttempts: maxAttempts,
		Exponential: true,
		Actions:     []UserAction{ActionRetry, ActionCancel},
	}
}

// fallbackStrategy builds the fallback variant.
func fallbackStrategy(option FallbackOption, message string) Strategy {
	return Strategy{
		Kind:     StrategyFallback,
		Fallback: option,
		Message:  message,
		Actions:  []UserAction{ActionUseFallback, ActionCancel},
	}
}

// alertStrategy builds the modal alert variant.
func alertStrategy(title, message string, actions ...UserAction) Strategy {
	if len(actions) == 0 {
		actions = []UserAction{ActionRetry, ActionCancel}
	}
	return Strategy{
		Kind:    StrategyAlert,
		Title:   title,
		Message: message,
		Actions: actions,
	}
}

// toastStrategy builds the transient toast variant.
func toastStrategy(message string, duration time.Duration) Strategy {
	return Strategy{
		Kind:          StrategyToast,
		Message:       message,
		ToastDuration: duration,
		Actions:       []UserAction{ActionDismiss},
	}
}

// queueForLaterStrategy builds the queue-for-later variant.
func queueForLaterStrategy(message string) Strategy {
	return Strategy{
		Kind:    StrategyQueueForLater,
		Message: message,
		Actions: []UserAction{ActionWait, ActionCancel},
	}
}

// offlineStrategy builds the switch-to-offline variant.
func offlineStrategy(message string) Strategy {
	return Strategy{
		Kind:     StrategySwitchToOffline,
		UseCache: true,
		Message:  message,
		Actions:  []UserAction{ActionSwitchOffline, ActionCancel},
	}
}

// countdownMessage renders a retry-after wait for display.
func countdownMessage(retryAfter time.Duration) string {
	secs := int(retryAfter.Round(time.Second).Seconds())
	if secs <= 0 {
		secs = 1
	}
	return fmt.Sprintf("Too many requests. Your translation will be retried in %d seconds.", secs)
}
