package api

import (
	"context"

	"expensia/internal/core"
)

type CategoryRequest struct {
	CategoryName      string `json:"categoryName"`
	TransactionTypeID int    `json:"transactionTypeId"`
}

func (c *Client) GetCategories(ctx context.Context) ([]core.Category, error) {
	var out []core.Category
	if err := c.get(ctx, "/category/getAll", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, req CategoryRequest) error {
	return c.post(ctx, "/category/new", nil, req, nil)
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, req CategoryRequest) error {
	return c.put(ctx, "/category/update", params("categoryId", itoa(id)), req, nil)
}

// ToggleCategory flips the enabled flag. The backend exposes it as a delete.
func (c *Client) ToggleCategory(ctx context.Context, id int64) error {
	return c.delete(ctx, "/category/delete", params("categoryId", itoa(id)), nil)
}
