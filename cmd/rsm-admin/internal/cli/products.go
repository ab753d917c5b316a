package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/redseamarket/adminkit"
	"github.com/redseamarket/adminkit/cmd/rsm-admin/internal/output"
	"github.com/redseamarket/adminkit/route"
	"github.com/redseamarket/adminkit/state"
)

func (a *app) productsCommand() *cobra.Command {
	var (
		page     int
		search   string
		pageSize int
		view     string
		filters  map[string]string
		clear    bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List catalogue products",
		Long: `List one page of products. --page-size, --view and --filter are saved
and reused by later invocations; --clear-filters drops saved filters.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c *adminkit.Client, _ *route.History) error {
				d, err := c.Navigate("/products")
				if err != nil {
					return err
				}
				if d.Redirect {
					return fmt.Errorf("%w: redirected to %s", adminkit.ErrNotAuthenticated, d.Path)
				}

				s := c.State()
				if pageSize > 0 {
					s.SetPageSize(pageSize)
				}
				if view != "" {
					s.SetViewMode(view)
				}
				switch {
				case clear:
					s.SetProductFilters(nil)
				case len(filters) > 0:
					f := make(map[string]any, len(filters))
					for k, v := range filters {
						f[k] = v
					}
					s.SetProductFilters(f)
				}

				items, total, err := c.ListProducts(cmd.Context(), page, search)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(a.stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{"data": items, "total": total})
				}
				return renderProducts(a.printer, s.Products(), items, page, total)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().StringVar(&search, "search", "", "name search")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "rows per page (saved)")
	cmd.Flags().StringVar(&view, "view", "", "view mode: table or grid (saved)")
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "filters such as status=active (saved)")
	cmd.Flags().BoolVar(&clear, "clear-filters", false, "drop saved filters")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func renderProducts(p *output.Printer, prefs state.ProductsState, items []state.Product, page, total int) error {
	if prefs.ViewMode == state.ViewGrid {
		for _, item := range items {
			p.Header(item.Name)
			p.Info("%s · %.2f · %d in stock · %s", item.Category, item.Price, item.Stock, item.Status)
		}
	} else {
		tbl := output.NewTable(p.Out(), "ID", "Name", "Category", "Price", "Stock", "Status")
		for _, item := range items {
			tbl.AddRow(item.ID, item.Name, item.Category,
				strconv.FormatFloat(item.Price, 'f', 2, 64),
				strconv.Itoa(item.Stock), item.Status)
		}
		if err := tbl.Render(); err != nil {
			return err
		}
	}
	p.Info("page %d · %d of %d · %d per page", page, len(items), total, prefs.PageSize)
	return nil
}
