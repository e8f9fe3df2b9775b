package context

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hrygo/shopsense/ai"
)

// minTriggerPhraseRunes filters out weak trigger phrases. Only phrases
// longer than this count as a strong topic switch on their own.
const minTriggerPhraseRunes = 15

var topicTriggerPhrases = []string{
	"tôi muốn mua quà tặng",
	"tôi muốn tìm cái khác",
	"cho tôi xem sản phẩm khác",
	"chuyển sang chủ đề khác",
	"tôi cần tư vấn chuyện khác",
	"i want to buy a gift",
	"show me something else",
	"let's talk about something else",
}

var negationStartRe = regexp.MustCompile(`^\s*(không|ko|thôi|đừng|bỏ đi|quên đi|no|nope|not|stop|forget)`)

// TopicChangeDetector decides whether a new user message abandons the
// subject of the conversation so far.
type TopicChangeDetector struct{}

func NewTopicChangeDetector() *TopicChangeDetector {
	return &TopicChangeDetector{}
}

// Detect applies three independent rules, any one of which flags a change:
//
//	(a) the message contains a strong trigger phrase and does not reference
//	    any product the last assistant turn suggested
//	(b) the quick intent category shifted from the previous user turn
//	(c) the message opens with a negation or rejection
func (d *TopicChangeDetector) Detect(message string, history []ai.Message) bool {
	lower := strings.ToLower(message)

	if d.hasStrongTrigger(lower) && !referencesSuggestedProduct(lower, history) {
		return true
	}
	if prev := lastUserMessage(history); prev != "" {
		prevIntent := QuickIntent(prev)
		curIntent := QuickIntent(message)
		if prevIntent != IntentUnknown && curIntent != IntentUnknown && prevIntent != curIntent {
			return true
		}
	}
	return negationStartRe.MatchString(lower)
}

func (d *TopicChangeDetector) hasStrongTrigger(lower string) bool {
	for _, phrase := range topicTriggerPhrases {
		if utf8.RuneCountInString(phrase) > minTriggerPhraseRunes && strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// referencesSuggestedProduct reports whether the message names any product
// from the most recent assistant turn, by significant name-token overlap.
func referencesSuggestedProduct(lower string, history []ai.Message) bool {
	assistant := lastAssistantMessage(history)
	if assistant == nil {
		return false
	}
	for _, p := range assistant.SuggestedProducts {
		for _, tok := range strings.Fields(strings.ToLower(p.Name)) {
			if utf8.RuneCountInString(tok) > 3 && strings.Contains(lower, tok) {
				return true
			}
		}
	}
	return false
}

func lastAssistantMessage(history []ai.Message) *ai.Message {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "assistant" {
			return &history[i]
		}
	}
	return nil
}

func lastUserMessage(history []ai.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}
