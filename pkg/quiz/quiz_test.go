package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFragment = `
<div class="quiz-message">
  <div class="quiz-question" data-correct="b">
    <p>What is the time complexity of binary search?</p>
    <form>
      <label><input type="radio" name="q1" value="a"> O(n)</label>
      <label><input type="radio" name="q1" value="b"> O(log n)</label>
      <label><input type="radio" name="q1" value="c"> O(1)</label>
      <div class="quiz-feedback"></div>
      <button type="submit">Check</button>
    </form>
  </div>
  <div class="quiz-question" data-correct="a">
    <p>What does this snippet print?</p>
    <pre><code>print(2 ** 3)</code></pre>
    <form>
      <label><input type="radio" name="q2" value="a"> 8</label>
      <label><input type="radio" name="q2" value="b"> 6</label>
    </form>
  </div>
</div>`

func TestParse(t *testing.T) {
	t.Run("should extract questions, options, and answers", func(t *testing.T) {
		questions, err := Parse(sampleFragment)
		require.NoError(t, err)
		require.Len(t, questions, 2)

		first := questions[0]
		assert.Equal(t, "What is the time complexity of binary search?", first.Prompt)
		assert.Equal(t, "b", first.Correct)
		require.Len(t, first.Options, 3)
		assert.Equal(t, "a", first.Options[0].Value)
		assert.Equal(t, "O(n)", first.Options[0].Label)
		assert.Equal(t, "O(log n)", first.Options[1].Label)

		second := questions[1]
		assert.Equal(t, "a", second.Correct)
		require.Len(t, second.CodeBlocks, 1)
		assert.Equal(t, "print(2 ** 3)", second.CodeBlocks[0])
	})

	t.Run("should find data-correct on an inner form", func(t *testing.T) {
		fragment := `<div class="quiz-question"><form data-correct="c">
			<label><input type="radio" name="q" value="c"> yes</label>
		</form></div>`
		questions, err := Parse(fragment)
		require.NoError(t, err)
		require.Len(t, questions, 1)
		assert.Equal(t, "c", questions[0].Correct)
	})

	t.Run("should return no questions for plain html", func(t *testing.T) {
		questions, err := Parse("<p>nothing interactive here</p>")
		require.NoError(t, err)
		assert.Empty(t, questions)
	})
}

func TestForm(t *testing.T) {
	question := Question{Prompt: "2+2?", Correct: "b", Options: []Option{
		{Value: "a", Label: "3"},
		{Value: "b", Label: "4"},
	}}

	t.Run("should ask for a selection before grading", func(t *testing.T) {
		f := NewForm(question, PolicyAlwaysRetry)
		assert.Equal(t, FeedbackSelectAnswer, f.Submit())
	})

	t.Run("should allow unlimited retries by default", func(t *testing.T) {
		f := NewForm(question, PolicyAlwaysRetry)

		f.Select("a")
		assert.Equal(t, FeedbackIncorrect, f.Submit())

		f.Select("b")
		assert.Equal(t, FeedbackCorrect, f.Submit())
		assert.False(t, f.Locked())

		// Still answerable after a correct answer.
		f.Select("a")
		assert.Equal(t, FeedbackIncorrect, f.Submit())
	})

	t.Run("should lock after a correct answer under lock_on_correct", func(t *testing.T) {
		f := NewForm(question, PolicyLockOnCorrect)

		f.Select("b")
		assert.Equal(t, FeedbackCorrect, f.Submit())
		assert.True(t, f.Locked())

		// Re-submitting or changing the selection is a no-op.
		f.Select("a")
		assert.Equal(t, "b", f.Selected())
		assert.Equal(t, FeedbackCorrect, f.Submit())
	})

	t.Run("should parse policies leniently", func(t *testing.T) {
		assert.Equal(t, PolicyLockOnCorrect, ParsePolicy("lock_on_correct"))
		assert.Equal(t, PolicyAlwaysRetry, ParsePolicy("always_retry"))
		assert.Equal(t, PolicyAlwaysRetry, ParsePolicy(""))
		assert.Equal(t, PolicyAlwaysRetry, ParsePolicy("whatever"))
	})
}
