package telegram

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Telegram caps messages at 4096 characters; we truncate well below
// that to leave room for the truncation notice.
const (
	maxMessageLength = 4000
	truncateAt       = 3900
)

var (
	reTablesAndCode = regexp.MustCompile(`(?s)\|.*?\||` + "```.*?```")
	reMarkdownMarks = regexp.MustCompile("[*_`#]")
	reBlankRuns     = regexp.MustCompile(`\n\s*\n`)
	reSpaceRuns     = regexp.MustCompile(` +`)
)

// chooseTitle picks a header for the reply from the user's request.
func chooseTitle(userText string) string {
	t := strings.ToLower(userText)
	switch {
	case strings.Contains(t, "translate"):
		return "🌐 Translation"
	case containsAny(t, "fix", "correct", "grammar"):
		return "📝 Correction"
	case containsAny(t, "explain", "how", "why"):
		return "💡 Explanation"
	case containsAny(t, "quiz", "exercise", "practice"):
		return "🎯 Exercise"
	case containsAny(t, "tense", "verb"):
		return "📚 Grammar Guide"
	case containsAny(t, "word", "vocab", "phrase"):
		return "📖 Vocabulary"
	case containsAny(t, "hello", "hi", "start"):
		return "👋 Welcome"
	default:
		return "💬 Answer"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// cleanText strips markdown tables, code fences, and emphasis marks
// the model tends to emit despite instructions, and normalizes
// whitespace.
func cleanText(raw string) string {
	if raw == "" {
		return "I couldn't generate a response. Please try again with a different question!"
	}

	cleaned := reTablesAndCode.ReplaceAllString(raw, "")
	cleaned = reMarkdownMarks.ReplaceAllString(cleaned, "")
	cleaned = reBlankRuns.ReplaceAllString(cleaned, "\n\n")
	cleaned = reSpaceRuns.ReplaceAllString(cleaned, " ")

	return strings.TrimSpace(cleaned)
}

// renderHTML turns a raw model reply into the HTML message sent to
// Telegram: a bold title from the request, escaped body paragraphs,
// and truncation with a notice when the reply runs past the limit.
func renderHTML(raw, userText string) string {
	title := chooseTitle(userText)
	body := cleanText(raw)

	var paragraphs []string
	for _, p := range strings.Split(body, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, html.EscapeString(p))
		}
	}

	final := fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(title), strings.Join(paragraphs, "\n\n"))

	if len(final) > maxMessageLength {
		truncated := final[:truncateAt]
		if idx := strings.LastIndex(truncated, "\n\n"); idx > 0 {
			truncated = truncated[:idx]
		}
		final = truncated + "\n\n💡 <i>Message too long - feel free to ask follow-up questions!</i>"
	}

	return final
}

// Exact greeting words that trigger the welcome flow on their own.
var exactGreetings = map[string]bool{
	"hello":   true,
	"hi":      true,
	"hey":     true,
	"start":   true,
	"/start":  true,
	"bonjour": true,
	"សួស្តី":  true,
}

// isGreeting reports whether the message is a bare greeting rather
// than a language question.
func isGreeting(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if exactGreetings[lower] {
		return true
	}
	for _, prefix := range []string{"hello,", "hi,", "hello ", "hi ", "hey "} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

const welcomeMessage = `<b>👋 Welcome to Language Tutor!</b>

I'm here to help you learn English, Khmer, and French. I can help with:

• 📝 Grammar corrections
• 🌐 Translations
• 📚 Grammar explanations
• 📖 Vocabulary building
• 🎯 Practice exercises
• 💡 Language tips

You can also send me a PDF or a photo of your homework and I'll look at it.

<em>Try asking: "Can you help me with English tenses?" or "Translate 'hello' to Khmer"</em>`

const greetingReply = "👋 Hello again! How can I help you with your language learning today?"
