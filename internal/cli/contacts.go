package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/internal/app"
	"github.com/Ramsey-B/clover/pkg/models"
	contactroutes "github.com/Ramsey-B/clover/pkg/routes/contact"
)

// NewIdentifyCommand reconciles a single observation and prints the consolidated contact
func NewIdentifyCommand(rt *runtime) *cobra.Command {
	var (
		email string
		phone string
		seed  bool
	)

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Reconcile one email/phone observation",
		Example: `  clover identify --email mcfly@hillvalley.edu --phone 123456
  clover identify --seed --email doc@hillvalley.edu --phone 123456`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := models.IdentifyRequest{}
			if cmd.Flags().Changed("email") {
				req.Email = &email
			}
			if cmd.Flags().Changed("phone") {
				req.PhoneNumber = &phone
			}

			return rt.withEngine(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if seed {
					if err := a.Engine().Seed(ctx); err != nil {
						return err
					}
				}

				resp, err := a.Engine().Identify(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), contactroutes.IdentifyResponse{Contact: resp})
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Observed email address")
	cmd.Flags().StringVar(&phone, "phone", "", "Observed phone number")
	cmd.Flags().BoolVar(&seed, "seed", false, "Load the demo contacts before identifying")

	return cmd
}

// NewContactsCommand prints every stored contact ordered by id
func NewContactsCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List stored contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withEngine(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return printContacts(ctx, cmd, a)
			})
		},
	}
}

// NewSeedCommand replaces the store contents with the demo contacts
func NewSeedCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace stored contacts with the demo dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withEngine(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine().Seed(ctx); err != nil {
					return err
				}
				return printContacts(ctx, cmd, a)
			})
		},
	}
}

// NewResetCommand removes every contact and restarts ids at 1
func NewResetCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove all stored contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withEngine(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine().Reset(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "contacts reset")
				return nil
			})
		},
	}
}

func printContacts(ctx context.Context, cmd *cobra.Command, a *app.App) error {
	contacts, err := a.Engine().ListAll(ctx)
	if err != nil {
		return err
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	return printJSON(cmd.OutOrStdout(), contactroutes.ListResponse{Contacts: contacts})
}
