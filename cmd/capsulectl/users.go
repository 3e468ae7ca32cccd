package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	usersCmd := &cobra.Command{Use: "users", Short: "User operations"}

	// upsert
	var userId, email, name, birth, deviceToken string
	upsertCmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userId == "" {
				return fmt.Errorf("--userId required")
			}
			payload := map[string]interface{}{"id": userId}
			if email != "" {
				payload["email"] = email
			}
			if name != "" {
				payload["name"] = name
			}
			if deviceToken != "" {
				payload["deviceToken"] = deviceToken
			}
			if birth != "" {
				t, err := time.Parse("2006-01-02", birth)
				if err != nil {
					return fmt.Errorf("invalid --birth, want YYYY-MM-DD: %w", err)
				}
				payload["birthDate"] = t
			}
			data, err := doPostJSON("/api/users", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	upsertCmd.Flags().StringVarP(&userId, "userId", "u", "", "User ID (required)")
	upsertCmd.Flags().StringVarP(&email, "email", "e", "", "User email")
	upsertCmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	upsertCmd.Flags().StringVarP(&birth, "birth", "b", "", "Birth date YYYY-MM-DD")
	upsertCmd.Flags().StringVarP(&deviceToken, "token", "t", "", "Push device token")
	_ = upsertCmd.MarkFlagRequired("userId")
	usersCmd.AddCommand(upsertCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get USER_ID",
		Short: "Get user by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/api/users/%s", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	usersCmd.AddCommand(getCmd)

	// friend lookup
	friendCmd := &cobra.Command{
		Use:   "friend USER_ID FRIEND_ID",
		Short: "Fetch a friend's display data",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("/api/users/%s/friends/%s", args[0], args[1]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	usersCmd.AddCommand(friendCmd)

	// friend removal
	unfriendCmd := &cobra.Command{
		Use:   "unfriend USER_ID FRIEND_ID",
		Short: "Remove a friend from a user's list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := doDelete(fmt.Sprintf("/api/users/%s/friends/%s", args[0], args[1])); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "removed")
			return nil
		},
	}
	usersCmd.AddCommand(unfriendCmd)

	rootCmd.AddCommand(usersCmd)
}
