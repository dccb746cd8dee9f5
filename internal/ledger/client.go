package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ErrInvalidInput marks requests rejected before any network round trip.
var ErrInvalidInput = errors.New("ledger: invalid input")

// HolderRow is a single ownership row: one row per distinct owning address.
type HolderRow struct {
	Address  string
	Quantity decimal.Decimal
}

// Metadata carries the registry metadata attached to an asset.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Ticker      string `json:"ticker"`
	Image       string `json:"image"`
	Website     string `json:"website"`
	Twitter     string `json:"twitter"`
	Telegram    string `json:"telegram"`
	Logo        string `json:"logo"`
}

// Asset describes per-asset ledger state.
type Asset struct {
	AssetID     string
	PolicyID    string
	Fingerprint string
	Supply      decimal.Decimal
	Metadata    Metadata
}

// Options parameterise the ledger API client.
type Options struct {
	BaseURL    string
	ProjectKey string
	Timeout    time.Duration
	UserAgent  string
	// RateLimit caps requests per second against the upstream indexer.
	RateLimit float64
	Burst     int
}

// Client talks to a Blockfrost-style ledger indexer. Holder pages are served
// in fixed-size slices sorted descending by quantity; an out-of-range page
// returns an empty array and no total-count field exists anywhere.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewClient constructs a ledger API client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	rps := opts.RateLimit
	if rps <= 0 {
		rps = 10
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "ledger_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// ListHolders fetches one page of ownership rows for the asset, sorted
// descending by quantity. Pages past the end come back empty.
func (c *Client) ListHolders(ctx context.Context, assetID string, page, count int) ([]HolderRow, error) {
	if strings.TrimSpace(assetID) == "" {
		return nil, fmt.Errorf("%w: asset id required", ErrInvalidInput)
	}
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", ErrInvalidInput)
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be >= 1", ErrInvalidInput)
	}

	query := url.Values{}
	query.Set("page", fmt.Sprintf("%d", page))
	query.Set("count", fmt.Sprintf("%d", count))
	query.Set("order", "desc")

	var raw []struct {
		Address  string `json:"address"`
		Quantity string `json:"quantity"`
	}
	path := fmt.Sprintf("/assets/%s/addresses?%s", url.PathEscape(assetID), query.Encode())
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}

	rows := make([]HolderRow, 0, len(raw))
	for _, entry := range raw {
		qty, err := decimal.NewFromString(entry.Quantity)
		if err != nil {
			return nil, fmt.Errorf("%w: bad quantity %q for %s", ErrInvalidInput, entry.Quantity, entry.Address)
		}
		if qty.IsNegative() {
			return nil, fmt.Errorf("%w: negative quantity for %s", ErrInvalidInput, entry.Address)
		}
		rows = append(rows, HolderRow{Address: entry.Address, Quantity: qty})
	}
	return rows, nil
}

// GetAsset retrieves per-asset supply and registry metadata.
func (c *Client) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	if strings.TrimSpace(assetID) == "" {
		return Asset{}, fmt.Errorf("%w: asset id required", ErrInvalidInput)
	}

	var raw struct {
		Asset       string          `json:"asset"`
		PolicyID    string          `json:"policy_id"`
		Fingerprint string          `json:"fingerprint"`
		Quantity    string          `json:"quantity"`
		Metadata    *Metadata       `json:"metadata"`
		OnchainRaw  json.RawMessage `json:"onchain_metadata"`
	}
	if err := c.getJSON(ctx, "/assets/"+url.PathEscape(assetID), &raw); err != nil {
		return Asset{}, err
	}

	supply := decimal.Zero
	if raw.Quantity != "" {
		parsed, err := decimal.NewFromString(raw.Quantity)
		if err != nil {
			return Asset{}, fmt.Errorf("parse asset supply: %w", err)
		}
		supply = parsed
	}

	asset := Asset{
		AssetID:     raw.Asset,
		PolicyID:    raw.PolicyID,
		Fingerprint: raw.Fingerprint,
		Supply:      supply,
	}
	if asset.AssetID == "" {
		asset.AssetID = assetID
	}
	if raw.Metadata != nil {
		asset.Metadata = *raw.Metadata
	} else if len(raw.OnchainRaw) > 0 {
		// Registry metadata missing; fall back to whatever was minted on chain.
		_ = json.Unmarshal(raw.OnchainRaw, &asset.Metadata)
	}

	return asset, nil
}

// CountHistoryEvents returns how many mint/burn events the asset has, capped
// at the requested count. Used as a coarse contract-risk signal.
func (c *Client) CountHistoryEvents(ctx context.Context, assetID string, count int) (int, error) {
	if strings.TrimSpace(assetID) == "" {
		return 0, fmt.Errorf("%w: asset id required", ErrInvalidInput)
	}
	if count < 1 {
		count = 100
	}

	var raw []struct {
		TxHash string `json:"tx_hash"`
		Action string `json:"action"`
	}
	path := fmt.Sprintf("/assets/%s/history?count=%d", url.PathEscape(assetID), count)
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return 0, err
	}
	return len(raw), nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if c.baseURL == "" {
		return errors.New("ledger base url not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.ProjectKey != "" {
		req.Header.Set("project_id", c.opts.ProjectKey)
	}
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "listingradar/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseAPIError(resp.StatusCode, payload)
	}

	return json.Unmarshal(payload, out)
}

type apiError struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func parseAPIError(status int, payload []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("ledger api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("ledger api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("ledger api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("ledger api error (%d)", status)
}
