// Package api talks to the estimating server: catalog lookups, the settings
// snapshot an estimate was created with, and explicit payload saves.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/julianstephens/estimator/internal/catalog"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/models"
)

const maxBody = 8 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// Client is a catalog.Source backed by the server API.
type Client struct {
	base  string
	token string
	http  *retryablehttp.Client
}

// Option configures a Client.
type Option func(*Client)

// WithRetry overrides the retry count and minimum backoff.
func WithRetry(max int, wait time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = max
		c.http.RetryWaitMin = wait
		if c.http.RetryWaitMax < wait {
			c.http.RetryWaitMax = wait
		}
	}
}

// New returns a client for the server at baseURL. An empty token sends no
// Authorization header.
func New(baseURL, token string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = constants.HTTPRetryMax
	rc.HTTPClient.Timeout = constants.HTTPTimeout
	rc.Logger = leveledLogger{}

	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  rc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ catalog.Source = (*Client)(nil)

// leveledLogger routes retryablehttp's request logging into the app log.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, kv ...interface{}) { logger.Error(msg, kv...) }
func (leveledLogger) Info(msg string, kv ...interface{})  { logger.Debug(msg, kv...) }
func (leveledLogger) Debug(msg string, kv ...interface{}) { logger.Debug(msg, kv...) }
func (leveledLogger) Warn(msg string, kv ...interface{})  { logger.Warn(msg, kv...) }

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*retryablehttp.Request, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *retryablehttp.Request, path string) (gjson.Result, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, &StatusError{Method: req.Method, Path: path, Code: resp.StatusCode}
	}
	if !gjson.Valid(string(body)) {
		return gjson.Result{}, fmt.Errorf("%s: response is not valid JSON", path)
	}
	return gjson.ParseBytes(body), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	return c.do(req, path)
}

func stringList(res gjson.Result) []string {
	var out []string
	for _, v := range res.Array() {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// firstOf returns the first of paths present on res.
func firstOf(res gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func (c *Client) MaterialTypes(ctx context.Context) ([]string, error) {
	res, err := c.get(ctx, "/estimator/api/material-types", nil)
	if err != nil {
		return nil, err
	}
	return catalog.WithAssemblies(stringList(res)), nil
}

// MaterialDescriptions accepts both the per-each shape (price_each,
// labor_each) and the raw pack shape (price, labor_unit,
// unit_quantity_size), normalising the latter.
func (c *Client) MaterialDescriptions(ctx context.Context, materialType string) ([]models.MaterialOption, error) {
	materialType = strings.TrimSpace(materialType)
	if materialType == "" {
		return nil, nil
	}
	res, err := c.get(ctx, "/estimator/api/material-descriptions", url.Values{"type": {materialType}})
	if err != nil {
		return nil, err
	}

	var out []models.MaterialOption
	for _, r := range res.Array() {
		opt := models.MaterialOption{
			ID:          r.Get("id").String(),
			Description: firstOf(r, "item_description", "description").String(),
			Unit:        r.Get("unit").String(),
			PackSize:    int(r.Get("unit_quantity_size").Int()),
		}
		if pe := firstOf(r, "price_each", "unitPrice"); pe.Exists() {
			opt.UnitPrice = pe.Float()
			opt.LaborUnitHours = firstOf(r, "labor_each", "laborUnitHours").Float()
			if opt.Unit == "" {
				opt.Unit = constants.PerEachUnit
			}
		} else {
			opt.UnitPrice = models.PerEach(r.Get("price").Float(), opt.PackSize)
			opt.LaborUnitHours = models.PerEach(r.Get("labor_unit").Float(), opt.PackSize)
		}
		if opt.ID == "" {
			continue
		}
		out = append(out, opt)
	}
	return out, nil
}

func (c *Client) Assemblies(ctx context.Context) ([]models.Assembly, error) {
	res, err := c.get(ctx, "/estimator/api/assemblies", nil)
	if err != nil {
		return nil, err
	}
	var out []models.Assembly
	for _, r := range res.Array() {
		a := models.Assembly{
			ID:   r.Get("id").String(),
			Name: firstOf(r, "name", "item_description").String(),
		}
		if a.ID != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *Client) AssemblyRollup(ctx context.Context, assemblyID string) (models.AssemblyRollup, error) {
	path := "/estimator/api/assemblies/" + url.PathEscape(assemblyID) + "/rollup"
	res, err := c.get(ctx, path, nil)
	if err != nil {
		return models.AssemblyRollup{}, err
	}
	return models.AssemblyRollup{
		AssemblyID:        assemblyID,
		MaterialCostTotal: firstOf(res, "material_cost_total", "materialCostTotal").Float(),
		LaborHoursTotal:   firstOf(res, "labor_hours_total", "laborHoursTotal").Float(),
		ComponentCount:    int(res.Get("component_count").Int()),
	}, nil
}

func (c *Client) DjeCategories(ctx context.Context) ([]string, error) {
	res, err := c.get(ctx, "/api/dje-categories", nil)
	if err != nil {
		return nil, err
	}
	return stringList(res), nil
}

func (c *Client) DjeSubcategories(ctx context.Context, category string) ([]string, error) {
	if strings.TrimSpace(category) == "" {
		return nil, nil
	}
	res, err := c.get(ctx, "/api/dje-subcategories", url.Values{"category": {category}})
	if err != nil {
		return nil, err
	}
	return stringList(res), nil
}

func (c *Client) DjeDescriptions(ctx context.Context, category, subcategory string) ([]models.DjeOption, error) {
	if strings.TrimSpace(category) == "" || strings.TrimSpace(subcategory) == "" {
		return nil, nil
	}
	res, err := c.get(ctx, "/api/dje-descriptions", url.Values{
		"category":    {category},
		"subcategory": {subcategory},
	})
	if err != nil {
		return nil, err
	}
	var out []models.DjeOption
	for _, r := range res.Array() {
		opt := models.DjeOption{
			ID:          r.Get("id").String(),
			Description: r.Get("description").String(),
			UnitCost:    firstOf(r, "cost", "default_unit_cost", "unitCost").Float(),
		}
		if opt.ID != "" {
			out = append(out, opt)
		}
	}
	return out, nil
}

// parsePricing reads a pricing block; absent fields keep their defaults.
func parsePricing(p gjson.Result) models.Settings {
	s := models.DefaultSettings()
	fields := map[string]*float64{
		constants.SettingLaborRate:         &s.LaborRate,
		constants.SettingOverheadPercent:   &s.OverheadPercent,
		constants.SettingMarginPercent:     &s.MarginPercent,
		constants.SettingMiscPercent:       &s.MiscPercent,
		constants.SettingSmallToolsPercent: &s.SmallToolsPercent,
		constants.SettingLargeToolsPercent: &s.LargeToolsPercent,
		constants.SettingWasteTheftPercent: &s.WasteTheftPercent,
		constants.SettingSalesTaxPercent:   &s.SalesTaxPercent,
	}
	for key, dst := range fields {
		if v := p.Get(key); v.Exists() && v.String() != "" {
			*dst = v.Float()
		}
	}
	return s
}

// Snapshot returns the pricing an estimate was created with. Estimates
// without a stored snapshot fall back to the organisation settings.
func (c *Client) Snapshot(ctx context.Context, estimateID string) (models.SettingsSnapshot, error) {
	res, err := c.get(ctx, "/estimates/"+url.PathEscape(estimateID)+".json", nil)
	if err == nil {
		if p := res.Get("settings_snapshot.pricing"); p.IsObject() {
			return models.SettingsSnapshot{
				Pricing: parsePricing(p),
				Version: int(res.Get("settings_snapshot.settings_version").Int()),
				Source:  "estimate",
			}, nil
		}
		logger.Debug("Estimate has no settings snapshot, using app settings", "estimate", estimateID)
	} else {
		logger.Warn("Failed to fetch estimate snapshot", "estimate", estimateID, "error", err)
	}

	res, err = c.get(ctx, "/admin/settings.json", nil)
	if err != nil {
		return models.SettingsSnapshot{}, fmt.Errorf("fetch settings snapshot: %w", err)
	}
	return models.SettingsSnapshot{
		Pricing: parsePricing(res.Get("pricing")),
		Version: int(res.Get("settings_version").Int()),
		Source:  "settings",
	}, nil
}

// LoadPayload returns the last explicitly saved payload. ok is false when
// the server has none.
func (c *Client) LoadPayload(ctx context.Context, estimateID string) (payload models.Payload, ok bool, err error) {
	res, err := c.get(ctx, "/estimates/"+url.PathEscape(estimateID)+"/payload.json", nil)
	if err != nil {
		return models.Payload{}, false, err
	}
	raw := res.Get("payload")
	if !raw.IsObject() || len(raw.Map()) == 0 {
		return models.Payload{}, false, nil
	}
	if err := json.Unmarshal([]byte(raw.Raw), &payload); err != nil {
		return models.Payload{}, false, fmt.Errorf("decode payload: %w", err)
	}
	return payload, true, nil
}

// SavePayload replaces the server copy of the estimate's payload.
func (c *Client) SavePayload(ctx context.Context, estimateID string, payload models.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	path := "/estimates/" + url.PathEscape(estimateID) + "/payload"
	req, err := c.newRequest(ctx, http.MethodPut, path, nil, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.do(req, path)
	if err != nil {
		return err
	}
	if ok := res.Get("ok"); ok.Exists() && !ok.Bool() {
		return fmt.Errorf("save payload: server reported failure: %s", res.Get("error").String())
	}
	return nil
}
