// Package giphy - клиент поиска GIF через Giphy API
package giphy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrNoAPIKey = errors.New("giphy api key is not configured")

type Image struct {
	URL    string `json:"url"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

type GIF struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Images struct {
		FixedHeight Image `json:"fixed_height"`
		FixedWidth  Image `json:"fixed_width"`
		Original    Image `json:"original"`
	} `json:"images"`
}

// MessageURL - ссылка, которая уходит в сообщение с маркером [GIF]
func (g GIF) MessageURL() string {
	return g.Images.FixedHeight.URL
}

type Pagination struct {
	TotalCount int `json:"total_count"`
	Count      int `json:"count"`
	Offset     int `json:"offset"`
}

type Page struct {
	Data       []GIF      `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type Client struct {
	httpClient http.Client
	apiKey     string
	baseURL    string
}

// NewClient; baseURL вида https://api.giphy.com/v1/gifs
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: http.Client{
			Timeout: timeout,
		},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}
	params.Set("api_key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("giphy %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("giphy %s returned status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode giphy %s response: %w", endpoint, err)
	}
	return nil
}

func pageParams(limit, offset int) url.Values {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	return params
}

func (c *Client) Search(ctx context.Context, query string, limit, offset int) (Page, error) {
	params := pageParams(limit, offset)
	params.Set("q", query)
	var page Page
	err := c.get(ctx, "search", params, &page)
	return page, err
}

func (c *Client) Trending(ctx context.Context, limit, offset int) (Page, error) {
	var page Page
	err := c.get(ctx, "trending", pageParams(limit, offset), &page)
	return page, err
}

// Random возвращает случайную гифку, tag необязателен
func (c *Client) Random(ctx context.Context, tag string) (GIF, error) {
	params := url.Values{}
	if tag != "" {
		params.Set("tag", tag)
	}
	var resp struct {
		Data GIF `json:"data"`
	}
	err := c.get(ctx, "random", params, &resp)
	return resp.Data, err
}

var popularTerms = []string{
	"happy", "love", "funny", "cute", "excited",
	"sad", "angry", "surprised", "dance", "party",
	"food", "cat", "dog", "reaction", "hello",
	"goodbye", "yes", "no", "think", "confused",
}

var popularTermsAr = []string{
	"سعيد", "حب", "مضحك", "لطيف", "متحمس",
	"حزين", "غاضب", "مندهش", "رقص", "حفلة",
	"طعام", "قطة", "كلب", "ردة فعل", "مرحبا",
	"وداعا", "نعم", "لا", "تفكير", "محتار",
}

// PopularTerms - подсказки для поиска на языке интерфейса
func PopularTerms(locale string) []string {
	if locale == "ar" {
		return append([]string(nil), popularTermsAr...)
	}
	return append([]string(nil), popularTerms...)
}
