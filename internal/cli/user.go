package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailsession/internal/app"
	"github.com/lu-zhengda/mailsession/internal/auth"
	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway/gmail"
	"github.com/lu-zhengda/mailsession/internal/store"
)

func newUserCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCmd(rt))
	cmd.AddCommand(newUserListCmd(rt))
	cmd.AddCommand(newUserRemoveCmd(rt))
	cmd.AddCommand(newUserSwitchCmd(rt))
	return cmd
}

// keyringAuth returns the App's identity provider when it can store logins.
func keyringAuth(a *app.App) (*auth.KeyringProvider, error) {
	p, ok := a.Auth.(*auth.KeyringProvider)
	if !ok {
		return nil, errors.New("identity is fixed by MAILSESSION_TOKEN; unset it to manage users")
	}
	return p, nil
}

func newUserAddCmd(rt *runtime) *cobra.Command {
	var tokenFlag string

	cmd := &cobra.Command{
		Use:   "add [user-id]",
		Short: "Sign in a user",
		Long: `Sign in a user and make them current.

For the GraphQL backend pass the user ID and its bearer token (--token).
For the Gmail backend the OAuth flow runs in the browser and the account
address becomes the user ID.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.local(cmd.Context())
			if err != nil {
				return err
			}
			kp, err := keyringAuth(a)
			if err != nil {
				return err
			}

			var userID string
			if a.Config.Backend.Kind == "gmail" {
				if !rt.jsonFlag {
					rt.println("Starting Gmail OAuth flow...")
				}
				token, email, err := gmail.Authorize(cmd.Context(), rt.errOut)
				if err != nil {
					return err
				}
				if err := a.Tokens.SaveToken(email, token); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
				if err := a.DB.UpsertUser(cmd.Context(), &domain.User{
					ID:        email,
					Email:     email,
					Provider:  "gmail",
					CreatedAt: time.Now(),
				}); err != nil {
					return fmt.Errorf("failed to save user: %w", err)
				}
				if err := kp.Login(email, token.AccessToken); err != nil {
					return err
				}
				userID = email
			} else {
				if len(args) == 0 || tokenFlag == "" {
					return errors.New("user ID and --token are required for the graphql backend")
				}
				if err := kp.Login(args[0], tokenFlag); err != nil {
					return err
				}
				userID = args[0]
			}

			if rt.jsonFlag {
				return rt.printJSON(jsonAction{OK: true, Action: "user_add", UserID: userID})
			}
			rt.printf("Signed in as %s\n", userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "bearer token for the graphql backend")
	return cmd
}

func newUserListCmd(rt *runtime) *cobra.Command {
	var cachedFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var users []domain.User
			var currentID string
			if cachedFlag {
				a, err := rt.local(cmd.Context())
				if err != nil {
					return err
				}
				if users, err = a.DB.ListUsers(cmd.Context()); err != nil {
					return fmt.Errorf("failed to list users: %w", err)
				}
				currentID = rt.currentUserID(a)
			} else {
				a, err := rt.session(cmd.Context())
				if err != nil {
					return err
				}
				snap := a.Session.Snapshot()
				users = snap.Users
				if snap.CurrentUser != nil {
					currentID = snap.CurrentUser.ID
				}
			}

			if rt.jsonFlag {
				return rt.printJSON(toJSONUsers(users, currentID))
			}
			if len(users) == 0 {
				rt.println("No users found.")
				return nil
			}
			w := rt.table()
			fmt.Fprintln(w, "CURRENT\tID\tNAME\tEMAIL")
			for _, u := range users {
				mark := " "
				if u.ID == currentID {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, u.ID, u.Name, u.Email)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&cachedFlag, "cached", false, "read the local mirror instead of the backend")
	return cmd
}

func newUserRemoveCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <user-id>",
		Short: "Sign out a user and delete their local data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			a, err := rt.local(cmd.Context())
			if err != nil {
				return err
			}
			kp, err := keyringAuth(a)
			if err != nil {
				return err
			}
			if err := kp.Logout(userID); err != nil {
				return err
			}
			if d, ok := a.Tokens.(interface{ DeleteToken(string) error }); ok && a.Config.Backend.Kind == "gmail" {
				if err := d.DeleteToken(userID); err != nil {
					fmt.Fprintf(rt.errOut, "Warning: failed to delete OAuth token: %v\n", err)
				}
			}
			if err := a.DB.DeleteUser(cmd.Context(), userID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("failed to delete local data: %w", err)
			}

			if rt.jsonFlag {
				return rt.printJSON(jsonAction{OK: true, Action: "user_remove", UserID: userID})
			}
			rt.printf("Removed user %s\n", userID)
			return nil
		},
	}
	return cmd
}

func newUserSwitchCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "switch <user-id>",
		Short: "Switch the current user",
		Long:  "Switch the backend session to another user and reload everything for them.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Dispatcher.SwitchUser(cmd.Context(), userID); err != nil {
				return err
			}
			if kp, ok := a.Auth.(*auth.KeyringProvider); ok {
				if err := kp.Switch(userID); err != nil {
					fmt.Fprintf(rt.errOut, "Warning: %v; the next run will act as the previous user\n", err)
				}
			}

			if rt.jsonFlag {
				return rt.printJSON(jsonAction{OK: true, Action: "user_switch", UserID: userID})
			}
			name := userID
			if cur := a.Session.Snapshot().CurrentUser; cur != nil {
				name = cur.DisplayName()
			}
			rt.printf("Switched to %s\n", name)
			return nil
		},
	}
	return cmd
}
