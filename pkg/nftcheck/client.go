// Package nftcheck asks a Helius DAS endpoint which assets a Solana wallet
// owns and decides whether any of them belongs to a given collection.
//
// The client is fail-soft: transport errors, non-200 responses and bodies
// without a result.items envelope all come back as an empty asset list, with
// the reason attached to QueryResult.Err for callers that want to tell
// "holds nothing" apart from "could not ask".
package nftcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the Helius mainnet RPC endpoint.
	DefaultBaseURL = "https://mainnet.helius-rpc.com"

	// MethodGetAssetsByOwner is the DAS method used for ownership lookups.
	MethodGetAssetsByOwner = "getAssetsByOwner"

	// Only the first page is requested.
	firstPage = 1
	pageLimit = 1000
)

var (
	ErrTransport = errors.New("transport failure")
	ErrStatus    = errors.New("unexpected status")
	ErrDecode    = errors.New("malformed response body")
	ErrEnvelope  = errors.New("response missing result.items")
	ErrRPC       = errors.New("rpc error")
)

// Asset is one owned asset as returned by getAssetsByOwner. Only the fields
// needed for the membership decision are decoded.
type Asset struct {
	ID       string     `json:"id"`
	Grouping []Grouping `json:"grouping"`
}

// Grouping is a (group_key, group_value) tag attached to an asset.
type Grouping struct {
	GroupKey   string `json:"group_key"`
	GroupValue string `json:"group_value"`
}

// QueryResult holds the outcome of one ownership query. Assets is empty
// whenever Err is set.
type QueryResult struct {
	Assets []Asset
	Err    error
}

// Config configures the Helius client.
type Config struct {
	BaseURL string        // RPC base URL (default: https://mainnet.helius-rpc.com)
	APIKey  string        // sent as the api-key query parameter
	Timeout time.Duration // HTTP request timeout (default: 15s)
	Logger  *zap.Logger   // default: no-op

	// HTTPClient overrides the default client; its Timeout is left untouched.
	HTTPClient *http.Client
}

// Client queries Helius DAS for wallet assets.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

// NewClient creates a new Helius DAS client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  hc,
		log:     cfg.Logger.Named("nftcheck"),
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  assetParams `json:"params"`
}

type assetParams struct {
	OwnerAddress string `json:"ownerAddress"`
	Page         int    `json:"page"`
	Limit        int    `json:"limit"`
}

type rpcResponse struct {
	Result *struct {
		Items []Asset `json:"items"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// AssetsByOwner performs a single getAssetsByOwner call for owner, asking for
// the first page of up to 1000 assets. It never returns a Go error: any
// failure yields an empty asset list with QueryResult.Err set.
func (c *Client) AssetsByOwner(ctx context.Context, owner string) QueryResult {
	assets, err := c.fetch(ctx, owner)
	if err != nil {
		c.log.Warn("asset query degraded to empty result",
			zap.String("address", owner),
			zap.Error(err),
		)
		return QueryResult{Assets: []Asset{}, Err: err}
	}

	c.log.Info("received assets",
		zap.String("address", owner),
		zap.Int("assets", len(assets)),
	)
	return QueryResult{Assets: assets}
}

func (c *Client) fetch(ctx context.Context, owner string) ([]Asset, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  MethodGetAssetsByOwner,
		Params: assetParams{
			OwnerAddress: owner,
			Page:         firstPage,
			Limit:        pageLimit,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// The URL carries the API key, so only the underlying cause is kept.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%w: %d %s", ErrRPC, decoded.Error.Code, decoded.Error.Message)
	}
	if decoded.Result == nil || decoded.Result.Items == nil {
		return nil, ErrEnvelope
	}
	return decoded.Result.Items, nil
}

// endpoint returns the base URL with the api-key query parameter set.
func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	q := u.Query()
	q.Set("api-key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
