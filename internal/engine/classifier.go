package engine

import (
	"strings"

	"github.com/zhanghealth/zhanghealth/internal/models"
)

// Exact-match command sets, compared after trimming and lowercasing. They
// take priority over metric extraction in the order listed here, so a reply
// that equals a command keyword is never re-interpreted as a metric.
var (
	optOutWords      = wordSet("no", "stop", "unsubscribe", "quit", "cancel")
	optInWords       = wordSet("start", "yes", "resume", "subscribe")
	acknowledgeWords = wordSet("ok", "done", "完成", "做了", "好")
)

func wordSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Classify maps an inbound free-text reply to a typed intent. It is a pure
// function: exact command matches are checked first, then metric extraction
// in the fixed blood pressure → blood sugar → weight → heart rate order, and
// anything else becomes IntentUnknown carrying the trimmed original text.
func Classify(text string) models.Intent {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if _, ok := optOutWords[lower]; ok {
		return models.Intent{Type: models.IntentOptOut}
	}
	if _, ok := optInWords[lower]; ok {
		return models.Intent{Type: models.IntentOptIn}
	}
	if _, ok := acknowledgeWords[lower]; ok {
		return models.Intent{Type: models.IntentAcknowledge}
	}

	if reading, ok := ParseMetric(trimmed); ok {
		return models.Intent{Type: models.IntentHealthData, Reading: &reading}
	}

	return models.Intent{Type: models.IntentUnknown, Text: trimmed}
}
