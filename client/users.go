package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Me returns the caller's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ProfileUpdate carries optional profile changes; nil fields are left untouched.
type ProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// UpdateProfile applies the given changes and returns the updated profile.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPut, "/api/users/update", update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers lists all users, newest first.
func (c *Client) ListUsers(ctx context.Context, page PageParams) (*Page[User], error) {
	var result Page[User]
	if err := c.do(ctx, http.MethodGet, "/api/users"+pageQuery(page, nil), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchUsers finds users whose name or email contains the query.
func (c *Client) SearchUsers(ctx context.Context, query string, page PageParams) (*Page[User], error) {
	var result Page[User]
	path := "/api/users/search" + pageQuery(page, url.Values{"q": {query}})
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func pageQuery(page PageParams, extra url.Values) string {
	q := url.Values{}
	for k, vs := range extra {
		q[k] = vs
	}
	if page.Page > 0 {
		q.Set("page", strconv.Itoa(page.Page))
	}
	if page.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(page.PerPage))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
