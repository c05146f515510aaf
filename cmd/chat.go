package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagechat/sage/pkg/api"
)

func newAPIClient() *api.Client {
	return api.NewClient(cfg.Server.URL, api.WithTimeout(cfg.Server.Timeout))
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Manage chats",
}

var chatNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newAPIClient().CreateChat(cmd.Context())
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("backend refused chat creation")
		}
		fmt.Println(resp.ChatID)
		return nil
	},
}

var chatClearCmd = &cobra.Command{
	Use:   "clear <chat-id>",
	Short: "Clear a chat's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newAPIClient().ClearChat(cmd.Context(), args[0])
	},
}

var chatDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newAPIClient().DeleteChat(cmd.Context(), args[0])
	},
}

var chatTitleCmd = &cobra.Command{
	Use:   "title <chat-id> <title>",
	Short: "Rename a chat",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newAPIClient().UpdateTitle(cmd.Context(), args[0], args[1])
	},
}

func init() {
	chatCmd.AddCommand(chatNewCmd, chatClearCmd, chatDeleteCmd, chatTitleCmd)
	rootCmd.AddCommand(chatCmd)
}
