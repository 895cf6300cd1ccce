package netsuite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pickupdesk/order-validation/internal/domain"
)

var tracer = otel.Tracer("netsuite")

// Status codes that allow pickup: pending fulfillment, partially fulfilled
// and the pending-billing variants.
var validPickupStatuses = map[string]bool{
	"B": true,
	"C": true,
	"D": true,
	"E": true,
}

// Billed orders may already have shipped. Recognized and logged, but pickup
// eligibility is unchanged for now; the warehouse wants this surfaced before
// any policy change.
var flaggedStatuses = map[string]bool{
	"F": true,
}

const suiteQLPath = "/services/rest/query/v1/suiteql"

// One row per order: the transaction joined to its customer, counting
// non-summary lines for the item count. The tranid is inlined because SuiteQL
// over REST has no bind parameters; escapeLiteral handles quoting.
const orderQuery = `
	SELECT
		t.id,
		t.tranid,
		t.status,
		BUILTIN.DF(t.status) AS statusName,
		t.entity,
		c.companyname,
		c.email AS customerEmail,
		t.otherrefnum AS poNumber,
		(SELECT COUNT(*) FROM transactionLine tl WHERE tl.transaction = t.id AND tl.mainline = 'F') AS itemCount
	FROM transaction t
	JOIN customer c ON t.entity = c.id
	WHERE t.type = 'SalesOrd'
	AND t.tranid = '%s'`

// Config carries the token-based-auth credentials. BaseURL and HTTPClient are
// optional and exist so tests can point the client at a local server without
// signing.
type Config struct {
	AccountID      string
	ConsumerKey    string
	ConsumerSecret string
	TokenID        string
	TokenSecret    string

	BaseURL    string
	HTTPClient *http.Client
}

// Client queries NetSuite through SuiteQL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		host := strings.ReplaceAll(strings.ToLower(cfg.AccountID), "_", "-")
		baseURL = fmt.Sprintf("https://%s.suitetalk.api.netsuite.com", host)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		oauthConfig := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
		oauthConfig.Realm = cfg.AccountID
		oauthConfig.Signer = &hmacSHA256Signer{consumerSecret: cfg.ConsumerSecret}

		token := oauth1.NewToken(cfg.TokenID, cfg.TokenSecret)
		httpClient = oauthConfig.Client(oauth1.NoContext, token)
		httpClient.Timeout = 15 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

type suiteQLResponse struct {
	Items []suiteQLOrder `json:"items"`
}

// SuiteQL may return numeric columns as strings; json.Number covers both.
type suiteQLOrder struct {
	TranID        string      `json:"tranid"`
	Status        string      `json:"status"`
	StatusName    string      `json:"statusName"`
	CompanyName   string      `json:"companyname"`
	CustomerEmail string      `json:"customerEmail"`
	PONumber      string      `json:"poNumber"`
	ItemCount     json.Number `json:"itemCount"`
}

// FindOrder looks up a sales order by tranid and classifies it for pickup.
// It returns the canonical order plus the NetSuite customer email so the
// caller can retain it for later domain re-checks. A missing order yields
// domain.ErrOrderNotFound; every other failure wraps
// domain.ErrSourceUnavailable with the detail kept out of user-facing paths.
func (c *Client) FindOrder(ctx context.Context, orderNumber, customerEmail string) (*domain.Order, string, error) {
	ctx, span := tracer.Start(ctx, "netsuite.FindOrder")
	span.SetAttributes(attribute.String("order.number", orderNumber))
	defer span.End()

	result, err := c.runQuery(ctx, fmt.Sprintf(orderQuery, escapeLiteral(orderNumber)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	if len(result.Items) == 0 {
		return nil, "", domain.ErrOrderNotFound
	}

	row := result.Items[0]
	netsuiteEmail := row.CustomerEmail

	if flaggedStatuses[row.Status] {
		c.logger.Info("order has a flagged status, allowing pickup unchanged",
			"order_number", orderNumber, "status", row.Status)
	}

	order := &domain.Order{
		OrderNumber:    valueOr(row.TranID, orderNumber),
		CompanyName:    valueOr(row.CompanyName, "Unknown"),
		ItemCount:      itemCount(row.ItemCount),
		PONumber:       row.PONumber,
		Status:         row.Status,
		StatusName:     valueOr(row.StatusName, "Unknown"),
		EmailMatch:     domain.MatchDomain(customerEmail, netsuiteEmail),
		ValidForPickup: validPickupStatuses[row.Status],
		FromCache:      false,
	}

	return order, netsuiteEmail, nil
}

func (c *Client) runQuery(ctx context.Context, query string) (*suiteQLResponse, error) {
	body, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return nil, err
	}

	url := c.baseURL + suiteQLPath + "?limit=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "transient")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("suiteql returned status %d", resp.StatusCode)
	}

	var result suiteQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode suiteql response: %w", err)
	}

	return &result, nil
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func itemCount(n json.Number) int {
	v, err := n.Int64()
	if err != nil || v < 0 {
		return 0
	}
	return int(v)
}
