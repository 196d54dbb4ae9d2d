package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/config"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/logger"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/pkg/errors"

	"github.com/rs/zerolog"
)

type searchResult struct {
	Entities []struct {
		ID         string                 `json:"id"`
		Name       string                 `json:"name"`
		Attributes map[string]interface{} `json:"attributes,omitempty"`
	} `json:"entities"`
}

// Client searches the remote entity directory. Used by the resolver for
// fields whose option sets are too large to bulk-load.
type Client struct {
	cfg         *config.Config
	httpClient  *http.Client
	authManager *AuthManager
	log         zerolog.Logger
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Directory.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		authManager: NewAuthManager(cfg),
		log:         logger.Get(),
	}
}

// Search runs a term query against one entity kind, scoped to a tenant.
// Terms shorter than 2 characters are rejected up front.
func (c *Client) Search(ctx context.Context, tenantID, entity, term string) ([]model.SystemOption, error) {
	if len([]rune(term)) < 2 {
		return nil, errors.ErrSearchTermTooShort
	}

	token, err := c.authManager.GetToken(ctx)
	if err != nil {
		return nil, errors.NewRetryableError(err, "failed to get directory token")
	}

	endpoint := c.cfg.Directory.BaseURL + c.cfg.Directory.SearchEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	q := url.Values{}
	q.Set("tenant", tenantID)
	q.Set("entity", entity)
	q.Set("term", term)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	c.log.Debug().Str("entity", entity).Str("term", term).Msg("Searching directory")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewRetryableError(err, "directory request failed")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusUnauthorized:
		// Token likely expired; drop it so a retry re-authenticates.
		c.authManager.Invalidate()
		return nil, errors.NewRetryableError(errors.ErrAuthenticationFailed, "directory rejected token")
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return nil, errors.NewRetryableError(fmt.Errorf("HTTP %d", resp.StatusCode), "directory unavailable")
	default:
		return nil, fmt.Errorf("directory search failed with status %d", resp.StatusCode)
	}

	var result searchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	options := make([]model.SystemOption, 0, len(result.Entities))
	for _, e := range result.Entities {
		options = append(options, model.SystemOption{
			ID:       e.ID,
			Name:     e.Name,
			Original: e.Attributes,
		})
	}
	return options, nil
}
