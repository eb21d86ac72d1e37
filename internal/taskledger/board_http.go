package taskledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"clocklayer/internal/judge"
)

const providerID = "taskledger"

// HTTPBoard reads participant scores from the task board's public API.
type HTTPBoard struct {
	baseURL   string
	community string
	apiKey    string
	client    *http.Client
	caller    *judge.Caller
}

func NewHTTPBoard(baseURL, community, apiKey string, client *http.Client, caller *judge.Caller) *HTTPBoard {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBoard{
		baseURL:   strings.TrimRight(baseURL, "/"),
		community: community,
		apiKey:    apiKey,
		client:    client,
		caller:    caller,
	}
}

type accountResponse struct {
	ID string `json:"id"`
	XP *int   `json:"xp"`
}

func (b *HTTPBoard) Account(ctx context.Context, externalID string) (*Account, error) {
	endpoint := fmt.Sprintf("%s/communities/%s/users/%s",
		b.baseURL, url.PathEscape(b.community), url.PathEscape(externalID))
	header := http.Header{}
	header.Set("x-api-key", b.apiKey)

	var resp accountResponse
	err := b.caller.Do(ctx, func(ctx context.Context) error {
		resp = accountResponse{}
		return judge.GetJSON(ctx, b.client, providerID, endpoint, header, &resp)
	})
	if err != nil {
		var se *judge.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, ErrUnknownAccount
		}
		return nil, err
	}
	if resp.XP == nil {
		return nil, judge.NewProviderError(judge.ErrorContractMismatch, providerID, "missing xp", nil)
	}
	acctID := resp.ID
	if acctID == "" {
		acctID = externalID
	}
	return &Account{ID: acctID, Points: *resp.XP}, nil
}
