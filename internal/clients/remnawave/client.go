// Package remnawave клиент REST API панели управления VPN Remnawave.
package remnawave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/vpn-storefront/internal/lib/expiry"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/upstream"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

const service = "remnawave"

// ErrCodeUserExists код ошибки панели при создании пользователя с занятым username.
const ErrCodeUserExists = "A019"

// Client клиент панели с Bearer-авторизацией и жёстким таймаутом на каждый вызов.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
}

// NewClient создаёт Client.
func NewClient(baseURL, token string, timeout time.Duration, pageSize int) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UserRequest тело запросов создания и обновления пользователя.
type UserRequest struct {
	UUID                 string   `json:"uuid,omitempty"`
	Username             string   `json:"username,omitempty"`
	Status               string   `json:"status,omitempty"`
	ExpireAt             string   `json:"expireAt,omitempty"`
	TrafficLimitBytes    *int64   `json:"trafficLimitBytes,omitempty"`
	TrafficLimitStrategy string   `json:"trafficLimitStrategy,omitempty"`
	ActiveInternalSquads []string `json:"activeInternalSquads,omitempty"`
}

type userDTO struct {
	UUID              string `json:"uuid"`
	Username          string `json:"username"`
	Status            string `json:"status"`
	ExpireAt          string `json:"expireAt"`
	TrafficLimitBytes int64  `json:"trafficLimitBytes"`
	UsedTrafficBytes  int64  `json:"usedTrafficBytes"`
	SubscriptionURL   string `json:"subscriptionUrl"`
	UserTraffic       *struct {
		UsedTrafficBytes int64 `json:"usedTrafficBytes"`
	} `json:"userTraffic,omitempty"`
}

func (u userDTO) toModel() models.VPNUser {
	used := u.UsedTrafficBytes
	if u.UserTraffic != nil {
		used = u.UserTraffic.UsedTrafficBytes
	}
	return models.VPNUser{
		UUID:              u.UUID,
		Username:          u.Username,
		Status:            u.Status,
		ExpireAt:          expiry.Parse(u.ExpireAt),
		TrafficLimitBytes: u.TrafficLimitBytes,
		UsedTrafficBytes:  used,
		SubscriptionURL:   u.SubscriptionURL,
	}
}

type envelope[T any] struct {
	Response T `json:"response"`
}

type usersPage struct {
	Users []userDTO `json:"users"`
	Total int       `json:"total"`
}

// IsAlreadyExists сообщает, что панель отклонила создание из-за занятого username.
func IsAlreadyExists(err error) bool {
	var ue *models.UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	if ue.Code == ErrCodeUserExists || ue.StatusCode == http.StatusConflict {
		return true
	}
	return strings.Contains(strings.ToLower(ue.Message), "already exists")
}

// CreateUser создаёт пользователя.
func (c *Client) CreateUser(ctx context.Context, req UserRequest) (*models.VPNUser, error) {
	const op = "remnawave.CreateUser"
	var out envelope[userDTO]
	if err := c.doJSON(ctx, http.MethodPost, "/api/users", req, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u := out.Response.toModel()
	return &u, nil
}

// UpdateUser обновляет пользователя по UUID. Отсутствующий пользователь даёт models.ErrNotFound.
func (c *Client) UpdateUser(ctx context.Context, req UserRequest) (*models.VPNUser, error) {
	const op = "remnawave.UpdateUser"
	if req.UUID == "" {
		return nil, fmt.Errorf("%s: uuid is required", op)
	}
	var out envelope[userDTO]
	if err := c.doJSON(ctx, http.MethodPatch, "/api/users", req, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	u := out.Response.toModel()
	return &u, nil
}

// GetUser возвращает пользователя по UUID. Отсутствующий пользователь даёт models.ErrNotFound.
func (c *Client) GetUser(ctx context.Context, uuid string) (*models.VPNUser, error) {
	const op = "remnawave.GetUser"
	var out envelope[userDTO]
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/"+url.PathEscape(uuid), nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	u := out.Response.toModel()
	return &u, nil
}

// DeleteUser удаляет пользователя по UUID.
func (c *Client) DeleteUser(ctx context.Context, uuid string) error {
	const op = "remnawave.DeleteUser"
	if err := c.doJSON(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(uuid), nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err))
	}
	return nil
}

// ListUsers постранично выгружает всех пользователей панели.
func (c *Client) ListUsers(ctx context.Context) ([]models.VPNUser, error) {
	const op = "remnawave.ListUsers"
	var users []models.VPNUser
	for start := 0; ; start += c.pageSize {
		q := url.Values{}
		q.Set("start", strconv.Itoa(start))
		q.Set("size", strconv.Itoa(c.pageSize))

		var out envelope[usersPage]
		if err := c.doJSON(ctx, http.MethodGet, "/api/users?"+q.Encode(), nil, &out); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, u := range out.Response.Users {
			users = append(users, u.toModel())
		}
		total := out.Response.Total
		if len(out.Response.Users) < c.pageSize || (total > 0 && len(users) >= total) {
			return users, nil
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return upstream.TransportError(service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstream.ResponseError(service, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if status, ok := upstream.StatusOf(err); ok && status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", models.ErrNotFound, err)
	}
	return err
}
