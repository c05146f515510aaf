package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagechat/sage/pkg/render"
)

var quizCmd = &cobra.Command{
	Use:   "quiz <chat-id>",
	Short: "Generate a quiz from a chat's conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newAPIClient().GenerateQuiz(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		renderer, err := render.New(100)
		if err != nil {
			return fmt.Errorf("failed to initialize renderer: %w", err)
		}
		fmt.Fprint(os.Stdout, renderer.QuizFragment(resp.QuizHTML))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quizCmd)
}
