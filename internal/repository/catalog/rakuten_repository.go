package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"furusatoReco/business/candidate"
	"furusatoReco/domain"

	"github.com/goccy/go-json"
	"github.com/pobyzaarif/goshortcute"
	"golang.org/x/time/rate"
)

// the marketplace rejects larger values
const (
	maxHits = 30
	maxPage = 100
)

type RakutenConfig struct {
	BaseURL       string
	ApplicationID string
	AffiliateID   string
	KeywordPrefix string

	// optional basic auth for an egress gateway in front of the API
	GatewayUsername string
	GatewayPassword string

	Timeout           time.Duration
	RequestsPerSecond float64
}

// RakutenRepository searches the hometown-tax section of the Rakuten Ichiba
// item search API.
type RakutenRepository struct {
	cfg     RakutenConfig
	client  *http.Client
	limiter *rate.Limiter
}

var _ candidate.CatalogRepository = (*RakutenRepository)(nil)

func NewRakutenRepository(cfg RakutenConfig) *RakutenRepository {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &RakutenRepository{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

type searchResponse struct {
	Items []struct {
		Item rakutenItem `json:"Item"`
	} `json:"Items"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type rakutenItem struct {
	ItemCode        string  `json:"itemCode"`
	ItemName        string  `json:"itemName"`
	ItemPrice       int     `json:"itemPrice"`
	ItemURL         string  `json:"itemUrl"`
	AffiliateURL    string  `json:"affiliateUrl"`
	ShopName        string  `json:"shopName"`
	ReviewCount     int     `json:"reviewCount"`
	ReviewAverage   float64 `json:"reviewAverage"`
	MediumImageURLs []struct {
		ImageURL string `json:"imageUrl"`
	} `json:"mediumImageUrls"`
}

func (r *RakutenRepository) Search(ctx context.Context, q candidate.Query) ([]domain.Product, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.searchURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Add("Accept", "application/json")
	if r.cfg.GatewayUsername != "" {
		buildBasicAuth := goshortcute.StringtoBase64Encode(r.cfg.GatewayUsername + ":" + r.cfg.GatewayPassword)
		req.Header.Add("Authorization", "Basic "+buildBasicAuth)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog request: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read catalog response: %w", domain.ErrUpstreamUnavailable, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w: catalog returned status=%d body=%s", domain.ErrUpstreamUnavailable, res.StatusCode, truncate(body, 200))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode catalog response: %w", domain.ErrMalformedResponse, err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%w: catalog error %s: %s", domain.ErrUpstreamUnavailable, parsed.Error, parsed.ErrorDescription)
	}

	out := make([]domain.Product, 0, len(parsed.Items))
	for _, wrapped := range parsed.Items {
		it := wrapped.Item
		if it.ItemCode == "" {
			continue
		}
		p := domain.Product{
			ID:            it.ItemCode,
			Name:          it.ItemName,
			Price:         it.ItemPrice,
			URL:           it.ItemURL,
			PurchaseURL:   it.AffiliateURL,
			Merchant:      it.ShopName,
			ReviewCount:   it.ReviewCount,
			ReviewAverage: it.ReviewAverage,
		}
		if p.PurchaseURL == "" {
			p.PurchaseURL = it.ItemURL
		}
		if len(it.MediumImageURLs) > 0 {
			p.ImageURL = it.MediumImageURLs[0].ImageURL
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *RakutenRepository) searchURL(q candidate.Query) string {
	v := url.Values{}
	v.Set("applicationId", r.cfg.ApplicationID)
	if r.cfg.AffiliateID != "" {
		v.Set("affiliateId", r.cfg.AffiliateID)
	}
	v.Set("format", "json")
	v.Set("keyword", strings.TrimSpace(r.cfg.KeywordPrefix+" "+q.Keyword))
	v.Set("hits", strconv.Itoa(clamp(q.Hits, 1, maxHits)))
	v.Set("page", strconv.Itoa(clamp(q.Page, 1, maxPage)))
	v.Set("sort", "-reviewCount")
	v.Set("availability", "1")
	if q.MaxPrice > 0 {
		v.Set("maxPrice", strconv.Itoa(q.MaxPrice))
	}
	return r.cfg.BaseURL + "?" + v.Encode()
}

func clamp(n, lo, hi int) int {
	return min(max(n, lo), hi)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
