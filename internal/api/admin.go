package api

import (
	"context"

	"expensia/internal/core"
)

func (c *Client) GetSystemOverview(ctx context.Context) (*core.SystemOverview, error) {
	var out core.SystemOverview
	if err := c.get(ctx, "/admin/system-overview", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
