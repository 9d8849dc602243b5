package api

import (
	"context"
	"io"
	"strconv"

	"expensia/internal/core"
)

type ChangePasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) GetUsers(ctx context.Context, pageNumber, pageSize int, searchKey string) (*core.Page[core.AdminUser], error) {
	var out core.Page[core.AdminUser]
	q := params(
		"pageNumber", strconv.Itoa(pageNumber),
		"pageSize", strconv.Itoa(pageSize),
		"searchKey", searchKey,
	)
	if err := c.get(ctx, "/user/getAll", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EnableUser(ctx context.Context, userID int64) error {
	return c.put(ctx, "/user/enable", params("userId", itoa(userID)), nil, nil)
}

func (c *Client) DisableUser(ctx context.Context, userID int64) error {
	return c.delete(ctx, "/user/disable", params("userId", itoa(userID)), nil)
}

func (c *Client) ChangePassword(ctx context.Context, email, password string) error {
	return c.post(ctx, "/user/settings/changePassword", nil, ChangePasswordRequest{Email: email, Password: password}, nil)
}

// UploadProfileImage sends the image as multipart fields email and file.
func (c *Client) UploadProfileImage(ctx context.Context, email, fileName, contentType string, content io.Reader) error {
	return c.postMultipart(ctx, "/user/settings/profileImg",
		map[string]string{"email": email},
		FilePart{FieldName: "file", FileName: fileName, ContentType: contentType, Content: content},
		nil)
}

// GetProfileImage returns the base64 encoded image, or "" when none is set.
func (c *Client) GetProfileImage(ctx context.Context, email string) (string, error) {
	var out string
	if err := c.get(ctx, "/user/settings/profileImg", params("email", email), &out); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) DeleteProfileImage(ctx context.Context, email string) error {
	return c.delete(ctx, "/user/settings/profileImg", params("email", email), nil)
}

func (c *Client) GetPreferences(ctx context.Context, email string) (*core.Preferences, error) {
	var out core.Preferences
	if err := c.get(ctx, "/user/settings/preferences", params("email", email), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePreferences(ctx context.Context, prefs core.Preferences) error {
	return c.put(ctx, "/user/settings/preferences", nil, prefs, nil)
}
