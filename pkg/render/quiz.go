package render

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/sagechat/sage/pkg/logger"
	"github.com/sagechat/sage/pkg/quiz"
)

var (
	quizPromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	quizOptionStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	quizFeedbackStyles = map[string]lipgloss.Style{
		quiz.FeedbackCorrect:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		quiz.FeedbackIncorrect:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		quiz.FeedbackSelectAnswer: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
)

// QuizFragment renders a quiz HTML fragment as structured questions.
// Fragments that don't parse into questions fall back to their text
// content.
func (r *Renderer) QuizFragment(fragment string) string {
	questions, err := quiz.Parse(fragment)
	if err != nil || len(questions) == 0 {
		if err != nil {
			logger.WithComponent("render").Warn("quiz fragment did not parse", "error", err)
		}
		return r.Markdown(stripTags(fragment))
	}

	var b strings.Builder
	for i, q := range questions {
		b.WriteString(r.Question(i+1, q))
		b.WriteString("\n")
	}
	return b.String()
}

// Question renders one quiz question with its options.
func (r *Renderer) Question(number int, q quiz.Question) string {
	var b strings.Builder
	b.WriteString(quizPromptStyle.Render(fmt.Sprintf("Q%d. %s", number, q.Prompt)) + "\n")

	for _, code := range q.CodeBlocks {
		b.WriteString(r.Code(code, "") + "\n")
	}

	for _, opt := range q.Options {
		b.WriteString(quizOptionStyle.Render(fmt.Sprintf("(%s) %s", opt.Value, opt.Label)) + "\n")
	}
	return b.String()
}

// Feedback renders a graded answer's feedback line.
func (r *Renderer) Feedback(feedback string) string {
	style, ok := quizFeedbackStyles[feedback]
	if !ok {
		style = quizFeedbackStyles[quiz.FeedbackSelectAnswer]
	}
	return style.Render(feedback) + "\n"
}

// Code highlights a code snippet with chroma. An empty language falls
// back to lexer analysis of the snippet itself.
func (r *Renderer) Code(source, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(source)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return quizOptionStyle.Render(source)
	}

	var b strings.Builder
	formatter := formatters.Get("terminal256")
	if err := formatter.Format(&b, styles.Get("monokai"), iterator); err != nil {
		return quizOptionStyle.Render(source)
	}
	return strings.TrimRight(b.String(), "\n")
}

// stripTags reduces an HTML fragment to its text content, one line per
// block-ish boundary. Good enough for the unparseable-fragment fallback.
func stripTags(fragment string) string {
	var b strings.Builder
	inTag := false
	for _, r := range fragment {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, strings.Join(strings.Fields(trimmed), " "))
		}
	}
	return strings.Join(lines, "\n")
}
