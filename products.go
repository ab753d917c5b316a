package adminkit

import (
	"context"

	"github.com/redseamarket/adminkit/query"
	"github.com/redseamarket/adminkit/state"
)

// ProductsPath is the catalogue list endpoint.
const ProductsPath = "/products"

type productsResponse struct {
	Data  []state.Product `json:"data"`
	Total int             `json:"total"`
	Meta  struct {
		Total int `json:"total"`
	} `json:"meta"`
}

// ListProducts fetches one catalogue page using the persisted filters and
// page size, and stores it in the products slice.
func (c *Client) ListProducts(ctx context.Context, page int, search string) ([]state.Product, int, error) {
	if err := c.ready(); err != nil {
		return nil, 0, err
	}
	prefs := c.store.Products()
	list := query.List{
		Page:    page,
		Limit:   prefs.PageSize,
		Search:  search,
		Filters: prefs.Filters,
	}

	c.store.ProductsLoading()
	var resp productsResponse
	if err := c.api.List(ctx, ProductsPath, list, &resp); err != nil {
		c.store.ProductsFailed(err.Error())
		return nil, 0, err
	}
	total := resp.Total
	if total == 0 {
		total = resp.Meta.Total
	}
	c.store.ProductsLoaded(resp.Data, total)
	return resp.Data, total, nil
}
