// cmd/storefront/commands.go
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"storefront/internal/common/errors"
	"storefront/internal/content"
	"storefront/internal/models"
)

type cli struct {
	opts globalOptions
	app  *app
}

func (c *cli) close() {
	if c.app != nil {
		c.app.close()
		c.app = nil
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront content client",
		Long:          "Browse and manage products, software, blog posts, careers, orders and users through the storefront REST API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.opts)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.opts.configPath, "config", "", "path to a config file (default: configs/config.yaml)")
	root.PersistentFlags().StringVar(&c.opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.productsCmd(),
		c.listGroup("software", "Software catalog", c.listSoftware),
		c.listGroup("blog", "Blog posts", c.listBlog),
		c.jobsCmd(),
		c.ordersCmd(),
		c.listGroup("users", "User directory (admin only)", c.listUsers),
		c.summaryCmd(),
	)
	return root
}

// ==========================
// Session
// ==========================

func (c *cli) loginCmd() *cobra.Command {
	var creds models.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.app.provider.Auth().Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			return printJSON(cmd, user)
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.provider.Auth().Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.currentUser(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd, user)
		},
	}
}

// currentUser restores the stored session and requires a signed-in user.
func (c *cli) currentUser(cmd *cobra.Command) (*models.User, error) {
	p := c.app.provider
	if err := p.Load(cmd.Context()); err != nil {
		return nil, err
	}
	if err := p.Auth().Err(); err != nil {
		return nil, err
	}
	user := p.Auth().CurrentUser()
	if user == nil {
		return nil, errors.NewNotAuthenticatedError()
	}
	return user, nil
}

// ==========================
// Listings
// ==========================

// listGroup builds "<name> list" for a domain without extra flags.
func (c *cli) listGroup(name, short string, list func(cmd *cobra.Command) (interface{}, error)) *cobra.Command {
	group := &cobra.Command{Use: name, Short: short}
	group.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List " + name,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := list(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd, items)
		},
	})
	return group
}

// ensure restores the session and loads d.
func (c *cli) ensure(cmd *cobra.Command, d content.Domain) error {
	p := c.app.provider
	if err := p.Load(cmd.Context()); err != nil {
		return err
	}
	return p.Ensure(cmd.Context(), d)
}

func (c *cli) productsCmd() *cobra.Command {
	var (
		category string
		filter   models.ProductFilter
	)

	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.ensure(cmd, content.Products); err != nil {
				return err
			}
			filter.Category = models.ProductCategory(category)
			return printJSON(cmd, c.app.provider.Products().Filtered(filter))
		},
	}
	list.Flags().StringVar(&category, "category", "", "only this category (hardware, software, accessory)")
	list.Flags().BoolVar(&filter.FeaturedOnly, "featured", false, "only featured products")
	list.Flags().BoolVar(&filter.InStockOnly, "in-stock", false, "only products in stock")
	list.Flags().StringVar(&filter.Search, "search", "", "case-insensitive name or description match")

	group := &cobra.Command{Use: "products", Short: "Hardware and accessory catalog"}
	group.AddCommand(list)
	return group
}

func (c *cli) listSoftware(cmd *cobra.Command) (interface{}, error) {
	if err := c.ensure(cmd, content.Software); err != nil {
		return nil, err
	}
	return c.app.provider.Software().Items(), nil
}

func (c *cli) listBlog(cmd *cobra.Command) (interface{}, error) {
	if err := c.ensure(cmd, content.Blog); err != nil {
		return nil, err
	}
	return c.app.provider.Blog().Published(), nil
}

func (c *cli) jobsCmd() *cobra.Command {
	var all bool

	list := &cobra.Command{
		Use:   "list",
		Short: "List job openings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.ensure(cmd, content.Careers); err != nil {
				return err
			}
			careers := c.app.provider.Careers()
			if all {
				return printJSON(cmd, careers.Jobs().Items())
			}
			return printJSON(cmd, careers.ActiveJobs())
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include closed openings")

	group := &cobra.Command{Use: "jobs", Short: "Career openings"}
	group.AddCommand(list)
	return group
}

func (c *cli) listUsers(cmd *cobra.Command) (interface{}, error) {
	user, err := c.currentUser(cmd)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, errors.NewForbiddenError("list users")
	}
	if err := c.app.provider.Ensure(cmd.Context(), content.Users); err != nil {
		return nil, err
	}
	return c.app.provider.Users().Items(), nil
}

// ==========================
// Orders
// ==========================

func (c *cli) ordersCmd() *cobra.Command {
	var status string

	list := &cobra.Command{
		Use:   "list",
		Short: "List your orders (all orders for admins)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.loadOrders(cmd); err != nil {
				return err
			}
			orders := c.app.provider.Orders()
			if status != "" {
				return printJSON(cmd, orders.ByStatus(models.OrderStatus(status)))
			}
			return printJSON(cmd, orders.Items())
		},
	}
	list.Flags().StringVar(&status, "status", "", "only orders in this status")

	setStatus := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Move an order to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.loadOrders(cmd); err != nil {
				return err
			}
			order, err := c.app.provider.Orders().UpdateStatus(cmd.Context(), args[0], models.OrderStatus(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd, order)
		},
	}

	group := &cobra.Command{Use: "orders", Short: "Orders of the signed-in user"}
	group.AddCommand(list, setStatus)
	return group
}

func (c *cli) loadOrders(cmd *cobra.Command) error {
	if _, err := c.currentUser(cmd); err != nil {
		return err
	}
	return c.app.provider.Ensure(cmd.Context(), content.Orders)
}

// ==========================
// Summary
// ==========================

func (c *cli) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Load every domain and print the aggregate state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := c.app.provider
			if err := p.Load(cmd.Context()); err != nil {
				return err
			}
			for _, d := range content.Domains {
				// Per-domain failures are part of the summary.
				if err := p.Ensure(cmd.Context(), d); err != nil && errors.IsCanceled(err) {
					return err
				}
			}
			return printJSON(cmd, p.Summary())
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
