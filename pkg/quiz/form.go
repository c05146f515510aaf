package quiz

// Feedback strings shown after a submission. These match the backend's web
// client so transcripts read the same across surfaces.
const (
	FeedbackCorrect      = "Correct!"
	FeedbackIncorrect    = "Incorrect. Try again!"
	FeedbackSelectAnswer = "Please select an answer."
)

// Policy controls what happens after a correct answer. The two historical
// behaviors are kept as explicit variants instead of coexisting silently.
type Policy string

const (
	// PolicyAlwaysRetry never locks the form; the learner can keep
	// answering. This is the default.
	PolicyAlwaysRetry Policy = "always_retry"

	// PolicyLockOnCorrect disables the form once the correct answer has
	// been given.
	PolicyLockOnCorrect Policy = "lock_on_correct"
)

// ParsePolicy maps a config string to a Policy, defaulting to always-retry
// for anything unrecognized.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyLockOnCorrect {
		return PolicyLockOnCorrect
	}
	return PolicyAlwaysRetry
}

// Form is the interactive state of one question: current selection,
// feedback, and whether the form has been locked by a correct answer.
type Form struct {
	Question Question

	policy   Policy
	selected string
	feedback string
	locked   bool
}

// NewForm wraps a question with the given answer policy.
func NewForm(q Question, policy Policy) *Form {
	return &Form{Question: q, policy: policy}
}

// Select records the learner's current choice. Selection changes are
// ignored once the form is locked.
func (f *Form) Select(value string) {
	if f.locked {
		return
	}
	f.selected = value
}

// Selected returns the current choice.
func (f *Form) Selected() string {
	return f.selected
}

// Submit grades the current selection and returns the feedback string.
// Submitting a locked form re-returns the last feedback without regrading,
// so repeated submissions can never double-apply.
func (f *Form) Submit() string {
	if f.locked {
		return f.feedback
	}
	if f.selected == "" {
		f.feedback = FeedbackSelectAnswer
		return f.feedback
	}
	if f.selected == f.Question.Correct {
		f.feedback = FeedbackCorrect
		if f.policy == PolicyLockOnCorrect {
			f.locked = true
		}
	} else {
		f.feedback = FeedbackIncorrect
	}
	return f.feedback
}

// Feedback returns the last feedback string, empty before any submission.
func (f *Form) Feedback() string {
	return f.feedback
}

// Locked reports whether the form accepts further answers.
func (f *Form) Locked() bool {
	return f.locked
}

// Forms builds interactive forms for every question in a parsed fragment.
func Forms(questions []Question, policy Policy) []*Form {
	forms := make([]*Form, len(questions))
	for i, q := range questions {
		forms[i] = NewForm(q, policy)
	}
	return forms
}
