package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

var ragCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage a chat's knowledge files",
}

var ragListCmd = &cobra.Command{
	Use:   "list <chat-id>",
	Short: "List knowledge files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := newAPIClient().ListRAGFiles(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%d\t%s\n", f.ID, f.Name)
		}
		return nil
	},
}

var ragUploadCmd = &cobra.Command{
	Use:   "upload <chat-id> <path>",
	Short: "Upload a knowledge file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()

		uploaded, err := newAPIClient().UploadRAGFile(cmd.Context(), args[0], filepath.Base(args[1]), f)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%s\n", uploaded.ID, uploaded.Name)
		return nil
	},
}

var ragDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id> <file-id>",
	Short: "Delete a knowledge file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fileID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid file id %q: %w", args[1], err)
		}
		return newAPIClient().DeleteRAGFile(cmd.Context(), args[0], fileID)
	},
}

func init() {
	ragCmd.AddCommand(ragListCmd, ragUploadCmd, ragDeleteCmd)
	rootCmd.AddCommand(ragCmd)
}
