package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/gastos-must-flow/internal/cli"
	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/config"
	"github.com/Veraticus/gastos-must-flow/internal/message"
	"github.com/Veraticus/gastos-must-flow/internal/model"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users, linked WhatsApp numbers and taxonomies",
	}
	cmd.AddCommand(usersCreateCmd())
	cmd.AddCommand(usersLinkCmd())
	cmd.AddCommand(usersUnlinkCmd())
	cmd.AddCommand(usersListCmd())
	cmd.AddCommand(usersTaxonomyCmd())
	return cmd
}

func usersCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			phone, _ := cmd.Flags().GetString("phone")
			taxonomyPath, _ := cmd.Flags().GetString("taxonomy")

			var tax model.Taxonomy
			if taxonomyPath != "" {
				var err error
				if tax, err = config.LoadTaxonomy(taxonomyPath); err != nil {
					return err
				}
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			user := &model.User{DisplayName: args[0]}
			if phone != "" {
				if user.LinkedChannelIdentity, err = identityArg(phone); err != nil {
					return err
				}
			}
			if err := store.CreateUser(ctx, user); err != nil {
				return err
			}
			if taxonomyPath != "" {
				if err := store.SaveTaxonomy(ctx, user.ID, tax); err != nil {
					return err
				}
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Usuario %s creado (%s)", user.Name(), user.ID)))
			return nil
		},
	}
	cmd.Flags().String("phone", "", "WhatsApp number to link, e.g. +51987654321")
	cmd.Flags().String("taxonomy", "", "YAML or JSON file with categories and payment methods")
	return cmd
}

func usersLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <user-id> <phone>",
		Short: "Link a WhatsApp number to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			identity, err := identityArg(args[1])
			if err != nil {
				return err
			}
			if err := store.LinkChannelIdentity(ctx, args[0], identity); err != nil {
				return err
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("%s vinculado a %s", identity, args[0])))
			return nil
		},
	}
}

func usersUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <user-id>",
		Short: "Remove a user's linked WhatsApp number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			if err := store.UnlinkChannelIdentity(ctx, args[0]); err != nil {
				return err
			}
			cmd.Println(cli.FormatSuccess("Número desvinculado de " + args[0]))
			return nil
		},
	}
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			users, err := store.ListUsers(ctx)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				cmd.Println(cli.FormatInfo("No hay usuarios registrados"))
				return nil
			}

			rows := make([][]string, 0, len(users))
			for _, u := range users {
				linked := cli.SubtleStyle.Render("sin vincular")
				if u.LinkedChannelIdentity != "" {
					linked = u.LinkedChannelIdentity
				}
				rows = append(rows, []string{u.ID, u.Name(), linked, u.CreatedAt.Format("2006-01-02")})
			}
			cmd.Println(cli.RenderTable([]string{"ID", "Nombre", "WhatsApp", "Creado"}, rows))
			return nil
		},
	}
}

func usersTaxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy <user-id> [file]",
		Short: "Show a user's taxonomy, or replace it from a YAML or JSON file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			if _, err := store.GetUser(ctx, args[0]); err != nil {
				return err
			}

			if len(args) == 2 {
				tax, err := config.LoadTaxonomy(args[1])
				if err != nil {
					return err
				}
				if err := store.SaveTaxonomy(ctx, args[0], tax); err != nil {
					return err
				}
				cmd.Println(cli.FormatSuccess(fmt.Sprintf("Taxonomía actualizada: %d categorías, %d métodos de pago",
					len(tax.Categories), len(tax.PaymentMethods))))
				return nil
			}

			tax, err := store.GetTaxonomy(ctx, args[0])
			if err != nil {
				return err
			}
			cmd.Println(renderTaxonomy(tax))
			return nil
		},
	}
	return cmd
}

// identityArg normalizes a phone number given on the command line.
func identityArg(raw string) (string, error) {
	identity := message.NormalizeIdentity(raw)
	if identity == "+" {
		return "", fmt.Errorf("%w: %q is not a phone number", common.ErrInvalidInput, raw)
	}
	return identity, nil
}

func renderTaxonomy(tax model.Taxonomy) string {
	if tax.IsEmpty() && len(tax.PaymentMethods) == 0 {
		return cli.FormatInfo("Taxonomía vacía")
	}

	var rows [][]string
	for _, c := range tax.Categories {
		rows = append(rows, []string{c.ID, c.Name, "", ""})
		for _, s := range c.Subcategories {
			rows = append(rows, []string{"", "", s.Name, fmt.Sprint(s.Keywords)})
		}
	}
	out := cli.RenderTable([]string{"Categoría", "Nombre", "Subcategoría", "Palabras clave"}, rows)

	if len(tax.PaymentMethods) > 0 {
		methods := make([][]string, 0, len(tax.PaymentMethods))
		for _, pm := range tax.PaymentMethods {
			methods = append(methods, []string{pm.ID, pm.Name})
		}
		out += "\n\n" + cli.RenderTable([]string{"Método", "Nombre"}, methods)
	}
	return out
}
