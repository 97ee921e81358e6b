package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/SergeiKhy/snaplink/internal/config"
	"github.com/SergeiKhy/snaplink/internal/models"
	"github.com/SergeiKhy/snaplink/internal/repository"
	"github.com/SergeiKhy/snaplink/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app зависимости команд; собираются в PersistentPreRunE, если не заданы заранее
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	storage  repository.Storage
	closeFn  func()
	registry repository.RegistryStore
	links    service.LinkService
	resolver service.Resolver
}

func main() {
	a := &app{}
	root := newRootCmd(a)

	err := root.Execute()
	a.close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "snaplink",
		Short:        "Manage short links in the configured storage",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}

	root.AddCommand(newCreateCmd(a), newListCmd(a), newResolveCmd(a), newResetCmd(a))

	return root
}

func (a *app) init(ctx context.Context) error {
	if a.logger == nil {
		a.logger = zap.NewNop()
	}

	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		a.cfg = cfg
	}

	if a.storage == nil {
		storage, closeFn, err := repository.Open(ctx, a.cfg)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		a.storage, a.closeFn = storage, closeFn
	}

	a.registry = repository.NewRegistry(a.storage, a.cfg.Storage.Key, a.cfg.Links.MaxLinks)
	if err := a.registry.Init(ctx); err != nil {
		return err
	}

	a.links = service.NewLinkService(
		a.registry,
		service.NewShortcodeGenerator(a.cfg.Links.CodeLength),
		nil,
		service.LinkServiceConfig{
			BaseURL:         a.cfg.App.BaseURL,
			DefaultValidity: a.cfg.Links.DefaultValidity,
			MaxBatch:        a.cfg.Links.MaxLinks,
			Stack:           a.cfg.Log.Stack,
		},
		a.logger,
	)
	a.resolver = service.NewResolver(a.registry, nil, service.ResolverConfig{Stack: a.cfg.Log.Stack}, a.logger)

	return nil
}

func (a *app) close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		longURL  string
		validity int
		code     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a short link for a long URL",
		Example: `  snaplink create --url="https://example.com/very/long/path"
  snaplink create -u https://example.com -v 60 -c promo1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := &models.CreateLinkInput{OriginalURL: longURL}
			if cmd.Flags().Changed("validity") {
				input.Validity = &validity
			}
			if code != "" {
				input.ShortCode = &code
			}

			link, err := a.links.CreateLink(cmd.Context(), input)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Code: %s\n", link.ShortCode)
			fmt.Fprintf(out, "Short URL: %s/%s\n", a.cfg.App.BaseURL, link.ShortCode)
			fmt.Fprintf(out, "Expires: %s\n", link.ExpiryDate.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVarP(&longURL, "url", "u", "", "long URL to shorten (required)")
	cmd.Flags().IntVarP(&validity, "validity", "v", service.DefaultValidity, "validity in minutes")
	cmd.Flags().StringVarP(&code, "code", "c", "", "custom alphanumeric shortcode")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show statistics for every stored link",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := a.links.ListStats(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tURL\tCLICKS\tSTATUS")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ShortCode, s.OriginalURL, s.TotalClicks, s.Status)
			}
			return w.Flush()
		},
	}
}

func newResolveCmd(a *app) *cobra.Command {
	var referrer string

	cmd := &cobra.Command{
		Use:   "resolve <code>",
		Short: "Resolve a shortcode and record a click",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := a.resolver.Resolve(cmd.Context(), args[0], models.ClickMeta{Referrer: referrer})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), record.OriginalURL)
			return nil
		},
	}

	cmd.Flags().StringVarP(&referrer, "referrer", "r", "", "referrer recorded with the click")

	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored link",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.registry.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All links deleted")
			return nil
		},
	}
}
