package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/sagechat/sage/pkg/quiz"
)

const quizPage = "quiz"

// openQuiz makes the most recent quiz interactive: one dropdown per
// question, graded in place.
func (a *App) openQuiz(quizHTML string) {
	if quizHTML == "" {
		a.chat.appendNotice(noticeInfo, "No quiz to answer yet. Generate one with ^G.")
		return
	}

	questions, err := quiz.Parse(quizHTML)
	if err != nil || len(questions) == 0 {
		a.chat.appendNotice(noticeWarning, "This quiz could not be made interactive.")
		return
	}

	a.openModal(quizPage, newQuizModal(a, questions))
}

type quizModal struct {
	*tview.Flex

	app      *App
	forms    []*quiz.Form
	form     *tview.Form
	feedback *tview.TextView
}

func newQuizModal(app *App, questions []quiz.Question) *quizModal {
	m := &quizModal{
		Flex:     tview.NewFlex().SetDirection(tview.FlexRow),
		app:      app,
		forms:    quiz.Forms(questions, app.quizPolicy()),
		form:     tview.NewForm(),
		feedback: tview.NewTextView().SetDynamicColors(true),
	}

	for i, q := range questions {
		index := i
		options := make([]string, len(q.Options))
		for j, opt := range q.Options {
			options[j] = fmt.Sprintf("(%s) %s", opt.Value, opt.Label)
		}

		label := fmt.Sprintf("Q%d. %s", i+1, q.Prompt)
		if len(q.CodeBlocks) > 0 {
			label += "  [" + strings.Join(q.CodeBlocks, " | ") + "]"
		}

		values := make([]string, len(q.Options))
		for j, opt := range q.Options {
			values[j] = opt.Value
		}
		m.form.AddDropDown(label, options, -1, func(option string, optionIndex int) {
			if optionIndex >= 0 && optionIndex < len(values) {
				m.forms[index].Select(values[optionIndex])
			}
		})
	}

	m.form.AddButton("Check answers", m.grade)
	m.form.AddButton("Close", func() { m.app.closeModal(quizPage) })
	m.form.SetCancelFunc(func() { m.app.closeModal(quizPage) })
	m.form.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			m.app.closeModal(quizPage)
			return nil
		}
		return event
	})

	m.SetBorder(true).SetTitle(" Quiz ")
	m.AddItem(m.form, 0, 3, true)
	m.AddItem(m.feedback, 0, 1, false)
	return m
}

// grade submits every question and repaints the feedback panel.
func (m *quizModal) grade() {
	var b strings.Builder
	for i, f := range m.forms {
		fmt.Fprintf(&b, "Q%d: ", i+1)
		b.WriteString(m.app.renderer.Feedback(f.Submit()))
	}

	m.feedback.Clear()
	fmt.Fprint(tview.ANSIWriter(m.feedback), b.String())
}
