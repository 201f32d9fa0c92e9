package plaid

import (
	"context"
	"fmt"
	"time"

	"tallyhub-server/src/bankcsv"

	"github.com/cenkalti/backoff/v4"
	"github.com/plaid/plaid-go/v41/plaid"
)

// maxSyncPages bounds one sync so a misbehaving cursor cannot loop forever.
const maxSyncPages = 20

type Client struct {
	api *plaid.APIClient
}

type LinkedItem struct {
	AccessToken     string
	ItemID          string
	InstitutionID   string
	InstitutionName string
}

// SyncResult is a page-merged transactions/sync run, already filtered to expenses.
type SyncResult struct {
	Parsed     bankcsv.Result
	NextCursor string
}

func NewPlaidClient(clientID, secret, env string) (*Client, error) {
	switch env {
	case "sandbox":
		return newClient(clientID, secret, plaid.Sandbox), nil
	case "production":
		return newClient(clientID, secret, plaid.Production), nil
	}
	return nil, fmt.Errorf("invalid Plaid environment: %s", env)
}

func newClient(clientID, secret string, env plaid.Environment) *Client {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)
	configuration.UseEnvironment(env)
	return &Client{api: plaid.NewAPIClient(configuration)}
}

func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: userID,
	}
	request := plaid.NewLinkTokenCreateRequest(
		"Tallyhub",
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
	)
	request.SetUser(user)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	resp, _, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", fmt.Errorf("create link token: %w", err)
	}
	return resp.GetLinkToken(), nil
}

// ExchangePublicToken trades the Link public token for an access token. Institution
// details are best effort.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*LinkedItem, error) {
	req := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*req).Execute()
	if err != nil {
		return nil, fmt.Errorf("exchange public token: %w", err)
	}

	linked := &LinkedItem{
		AccessToken: resp.GetAccessToken(),
		ItemID:      resp.GetItemId(),
	}

	itemResp, _, err := c.api.PlaidApi.ItemGet(ctx).ItemGetRequest(*plaid.NewItemGetRequest(linked.AccessToken)).Execute()
	if err != nil {
		return linked, nil
	}
	item := itemResp.GetItem()
	if item.InstitutionId.IsSet() && item.InstitutionId.Get() != nil {
		linked.InstitutionID = *item.InstitutionId.Get()
	}
	if name, ok := item.AdditionalProperties["institution_name"].(string); ok {
		linked.InstitutionName = name
	}
	return linked, nil
}

// SyncTransactions pages through transactions/sync from cursor. Each page is retried
// with exponential backoff.
func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string) (*SyncResult, error) {
	var added []synced
	next := cursor

	for page := 0; page < maxSyncPages; page++ {
		request := plaid.NewTransactionsSyncRequest(accessToken)
		if next != "" {
			request.SetCursor(next)
		}

		var resp plaid.TransactionsSyncResponse
		call := func() error {
			var err error
			resp, _, err = c.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
			return err
		}
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = 20 * time.Second
		if err := backoff.Retry(call, backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)); err != nil {
			return nil, fmt.Errorf("sync transactions: %w", err)
		}

		for _, t := range resp.GetAdded() {
			added = append(added, fromPlaid(t))
		}
		next = resp.GetNextCursor()
		if !resp.GetHasMore() {
			break
		}
	}

	return &SyncResult{Parsed: convert(added), NextCursor: next}, nil
}

func fromPlaid(t plaid.Transaction) synced {
	pfc := t.GetPersonalFinanceCategory()
	return synced{
		ID:           t.GetTransactionId(),
		Date:         t.GetDate(),
		Name:         t.GetName(),
		MerchantName: t.GetMerchantName(),
		Amount:       t.GetAmount(),
		Pending:      t.GetPending(),
		Primary:      pfc.GetPrimary(),
		Detailed:     pfc.GetDetailed(),
	}
}
