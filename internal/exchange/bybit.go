package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillm/action-guard/internal/clock"
)

const (
	DefaultBaseURL = "https://api.bybit.com"

	categorySpot   = "spot"
	accountUnified = "UNIFIED"
	orderTypeMkt   = "Market"
	recvWindow     = "5000"
)

// ErrExchangeAPI ошибка, которую вернул API биржи
var ErrExchangeAPI = errors.New("exchange api error")

// BybitClient клиент спотового API Bybit v5.
// Реализует execution.Exchange.
type BybitClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
	clock     clock.Clock
}

// envelope общий формат ответа v5
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

type tickerResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

type walletResult struct {
	List []struct {
		Coin []struct {
			Coin                string `json:"coin"`
			WalletBalance       string `json:"walletBalance"`
			AvailableToWithdraw string `json:"availableToWithdraw"`
		} `json:"coin"`
	} `json:"list"`
}

type orderResult struct {
	OrderID string `json:"orderId"`
}

// NewBybitClient создает клиент; пустой baseURL означает боевой API
func NewBybitClient(apiKey, apiSecret, baseURL string, clk clock.Clock) *BybitClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &BybitClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 30 * time.Second},
		clock:     clock.OrReal(clk),
	}
}

// GetPrice получает последнюю цену символа
func (b *BybitClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("category", categorySpot)
	q.Set("symbol", symbol)

	var res tickerResult
	if err := b.get(ctx, "/v5/market/tickers", q, false, &res); err != nil {
		return 0, err
	}
	if len(res.List) == 0 || res.List[0].LastPrice == "" {
		return 0, fmt.Errorf("no price data for symbol %s", symbol)
	}

	price, err := strconv.ParseFloat(res.List[0].LastPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price for %s: %w", symbol, err)
	}
	return price, nil
}

// GetBalance получает доступный баланс монеты
func (b *BybitClient) GetBalance(ctx context.Context, coin string) (float64, error) {
	q := url.Values{}
	q.Set("accountType", accountUnified)
	q.Set("coin", coin)

	var res walletResult
	if err := b.get(ctx, "/v5/account/wallet-balance", q, true, &res); err != nil {
		return 0, err
	}
	if len(res.List) == 0 {
		return 0, nil
	}

	for _, c := range res.List[0].Coin {
		if c.Coin != coin {
			continue
		}
		// Unified аккаунт может вернуть пустую строку
		raw := c.AvailableToWithdraw
		if raw == "" {
			raw = c.WalletBalance
		}
		if raw == "" {
			return 0, nil
		}
		balance, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse balance for %s: %w", coin, err)
		}
		return balance, nil
	}
	return 0, nil
}

// PlaceMarketOrder размещает рыночный ордер и возвращает его id
func (b *BybitClient) PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("invalid quantity %v", quantity)
	}
	side, err := normalizeSide(side)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]string{
		"category":  categorySpot,
		"symbol":    symbol,
		"side":      side,
		"orderType": orderTypeMkt,
		"qty":       strconv.FormatFloat(quantity, 'f', 8, 64),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v5/order/create", strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.sign(req, string(body))

	var res orderResult
	if err := b.do(req, &res); err != nil {
		return "", err
	}
	if res.OrderID == "" {
		return "", fmt.Errorf("%w: empty order id", ErrExchangeAPI)
	}
	return res.OrderID, nil
}

func (b *BybitClient) get(ctx context.Context, path string, q url.Values, private bool, out interface{}) error {
	query := q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+query, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if private {
		b.sign(req, query)
	}
	return b.do(req, out)
}

func (b *BybitClient) do(req *http.Request, out interface{}) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: http %d", ErrExchangeAPI, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if env.RetCode != 0 {
		return fmt.Errorf("%w: %s (code %d)", ErrExchangeAPI, env.RetMsg, env.RetCode)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

// sign подписывает запрос: HMAC-SHA256(timestamp + apiKey + recvWindow + payload)
func (b *BybitClient) sign(req *http.Request, payload string) {
	timestamp := strconv.FormatInt(b.clock.Now().UnixMilli(), 10)
	req.Header.Set("X-BAPI-API-KEY", b.apiKey)
	req.Header.Set("X-BAPI-SIGN", Signature(b.apiSecret, timestamp+b.apiKey+recvWindow+payload))
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
}

// Signature hex HMAC-SHA256 сообщения
func Signature(secret, message string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeSide(side string) (string, error) {
	switch strings.ToLower(side) {
	case "buy":
		return "Buy", nil
	case "sell":
		return "Sell", nil
	}
	return "", fmt.Errorf("unknown order side %q", side)
}
