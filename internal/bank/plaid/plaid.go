// Package plaid adapts the Plaid API to the bank ports.
package plaid

import (
	"context"
	"fmt"
	"strings"
	"time"

	plaidapi "github.com/plaid/plaid-go/v27/plaid"

	"budgeteer/internal/bank"
	"budgeteer/internal/core"
)

const pageSize = 500

// Config holds the Plaid API credentials and link settings.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	ClientName  string
	CountryCode string
}

type Client struct {
	api         *plaidapi.PlaidApiService
	clientName  string
	countryCode plaidapi.CountryCode
}

var _ bank.Client = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("plaid client id and secret are required")
	}

	configuration := plaidapi.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	env, err := environment(cfg.Environment)
	if err != nil {
		return nil, err
	}
	configuration.UseEnvironment(env)

	countryCode := cfg.CountryCode
	if countryCode == "" {
		countryCode = "US"
	}

	clientName := cfg.ClientName
	if clientName == "" {
		clientName = "Budgeteer"
	}

	return &Client{
		api:         plaidapi.NewAPIClient(configuration).PlaidApi,
		clientName:  clientName,
		countryCode: plaidapi.CountryCode(strings.ToUpper(countryCode)),
	}, nil
}

func environment(name string) (plaidapi.Environment, error) {
	switch strings.ToLower(name) {
	case "", "sandbox":
		return plaidapi.Sandbox, nil
	case "production":
		return plaidapi.Production, nil
	default:
		return "", fmt.Errorf("unknown plaid environment: %s", name)
	}
}

// CreateLinkToken implements bank.Linker
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	user := plaidapi.LinkTokenCreateRequestUser{ClientUserId: userID}
	request := plaidapi.NewLinkTokenCreateRequest(
		c.clientName,
		"en",
		[]plaidapi.CountryCode{c.countryCode},
		user,
	)
	request.SetProducts([]plaidapi.Products{plaidapi.PRODUCTS_TRANSACTIONS})

	resp, _, err := c.api.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", fmt.Errorf("create link token: %w", err)
	}

	return resp.GetLinkToken(), nil
}

// ExchangePublicToken implements bank.Linker
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (bank.LinkedItem, error) {
	request := plaidapi.NewItemPublicTokenExchangeRequest(publicToken)

	resp, _, err := c.api.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return bank.LinkedItem{}, fmt.Errorf("exchange public token: %w", err)
	}

	return bank.LinkedItem{
		AccessToken: resp.GetAccessToken(),
		ItemID:      resp.GetItemId(),
	}, nil
}

// FetchTransactions implements bank.TransactionSource. Pages through the
// full result set for the window.
func (c *Client) FetchTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]core.Transaction, error) {
	var txns []core.Transaction

	offset := int32(0)
	for {
		request := plaidapi.NewTransactionsGetRequest(
			accessToken,
			start.Format("2006-01-02"),
			end.Format("2006-01-02"),
		)
		request.SetOptions(plaidapi.TransactionsGetRequestOptions{
			Count:  plaidapi.PtrInt32(pageSize),
			Offset: plaidapi.PtrInt32(offset),
		})

		resp, _, err := c.api.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
		if err != nil {
			return nil, fmt.Errorf("get transactions (offset %d): %w", offset, err)
		}

		page := resp.GetTransactions()
		for _, t := range page {
			txns = append(txns, convertTransaction(t))
		}

		offset += int32(len(page))
		if offset >= resp.GetTotalTransactions() || len(page) == 0 {
			break
		}
	}

	return txns, nil
}

func convertTransaction(t plaidapi.Transaction) core.Transaction {
	pfc := t.GetPersonalFinanceCategory()
	return core.Transaction{
		Name:             t.GetName(),
		MerchantName:     t.GetMerchantName(),
		Amount:           t.GetAmount(),
		Date:             t.GetDate(),
		Category:         pfc.GetPrimary(),
		DetailedCategory: pfc.GetDetailed(),
	}
}
