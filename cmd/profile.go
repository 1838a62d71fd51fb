package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/siteaudit/internal/model"
)

var (
	profilePremium   bool
	profileUnlimited bool
	profileCredits   int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profiles and credits",
}

var profileSetCmd = &cobra.Command{
	Use:   "set <user-id>",
	Short: "Create or update a user profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		p := &model.Profile{
			UserID:    args[0],
			Premium:   profilePremium,
			Unlimited: profileUnlimited,
			Credits:   profileCredits,
		}
		if err := st.UpsertProfile(cmd.Context(), p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %s: premium=%t unlimited=%t credits=%d\n",
			p.UserID, p.Premium, p.Unlimited, p.Credits)
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		p, err := st.GetProfile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if p == nil {
			return eris.New("profile not found")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %s: premium=%t unlimited=%t credits=%d created=%s\n",
			p.UserID, p.Premium, p.Unlimited, p.Credits, p.CreatedAt.Format("2006-01-02"))
		return nil
	},
}

func init() {
	profileSetCmd.Flags().BoolVar(&profilePremium, "premium", false, "grant the premium tier")
	profileSetCmd.Flags().BoolVar(&profileUnlimited, "unlimited", false, "exempt from credit metering")
	profileSetCmd.Flags().IntVar(&profileCredits, "credits", 0, "set the credit balance")
	profileCmd.AddCommand(profileSetCmd, profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}
