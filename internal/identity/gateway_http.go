package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"clocklayer/internal/judge"
	id "clocklayer/pkg/domain"
)

const providerID = "identity"

// HTTPGateway talks to an Identity Toolkit compatible REST API.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	requestURI string
	client     *http.Client
	caller     *judge.Caller
}

func NewHTTPGateway(baseURL, apiKey, requestURI string, client *http.Client, caller *judge.Caller) *HTTPGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		requestURI: requestURI,
		client:     client,
		caller:     caller,
	}
}

type idpRequest struct {
	PostBody            string `json:"postBody"`
	RequestURI          string `json:"requestUri"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
}

type idpResponse struct {
	LocalID          string `json:"localId"`
	DisplayName      string `json:"displayName"`
	ScreenName       string `json:"screenName"`
	PhotoURL         string `json:"photoUrl"`
	NeedConfirmation bool   `json:"needConfirmation"`
}

// LinkViaPopup exchanges the provider credential the client obtained from
// the popup for the provider's account identity.
func (g *HTTPGateway) LinkViaPopup(ctx context.Context, provider, credential string) (*LinkResult, error) {
	req := idpRequest{
		PostBody:            credential + "&providerId=" + url.QueryEscape(provider),
		RequestURI:          g.requestURI,
		ReturnIdpCredential: true,
		ReturnSecureToken:   true,
	}
	var resp idpResponse
	if err := g.call(ctx, g.caller.Once, "accounts:signInWithIdp", req, &resp); err != nil {
		return nil, err
	}
	if resp.NeedConfirmation {
		return nil, ErrAccountExists
	}
	identityID, err := id.ParseIdentityID(resp.LocalID)
	if err != nil {
		return nil, judge.NewProviderError(judge.ErrorContractMismatch, providerID, "malformed account id", err)
	}
	return &LinkResult{
		ID:          identityID,
		Provider:    provider,
		DisplayName: resp.DisplayName,
		Handle:      resp.ScreenName,
		AvatarURL:   resp.PhotoURL,
	}, nil
}

func (g *HTTPGateway) SendPhoneCode(ctx context.Context, phone, challengeToken string) (ConfirmationHandle, error) {
	req := map[string]string{"phoneNumber": phone, "recaptchaToken": challengeToken}
	var resp struct {
		SessionInfo string `json:"sessionInfo"`
	}
	if err := g.call(ctx, g.caller.Once, "accounts:sendVerificationCode", req, &resp); err != nil {
		return "", err
	}
	if resp.SessionInfo == "" {
		return "", judge.NewProviderError(judge.ErrorContractMismatch, providerID, "missing sessionInfo", nil)
	}
	return ConfirmationHandle(resp.SessionInfo), nil
}

func (g *HTTPGateway) VerifyPhoneCode(ctx context.Context, handle ConfirmationHandle, code string) error {
	req := map[string]string{"sessionInfo": string(handle), "code": code}
	return g.call(ctx, g.caller.Do, "accounts:signInWithPhoneNumber", req, nil)
}

type runner func(ctx context.Context, fn func(ctx context.Context) error) error

// call posts to one REST method. Linking and sending a code spend single-use
// input, so they run through Caller.Once; only verification is retried.
func (g *HTTPGateway) call(ctx context.Context, run runner, method string, in, out any) error {
	endpoint := fmt.Sprintf("%s/%s?key=%s", g.baseURL, method, url.QueryEscape(g.apiKey))
	err := run(ctx, func(ctx context.Context) error {
		return judge.PostJSON(ctx, g.client, providerID, endpoint, nil, in, out)
	})
	return mapProviderError(err)
}

// mapProviderError turns the provider's error message codes into the
// gateway's typed errors.
func mapProviderError(err error) error {
	var se *judge.StatusError
	if err == nil || !errors.As(err, &se) {
		return err
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(se.Body, &body) != nil {
		return err
	}
	msg := body.Error.Message
	// Messages may carry a suffix such as "INVALID_CODE : details".
	if code, _, found := strings.Cut(msg, " "); found {
		msg = code
	}
	switch msg {
	case "INVALID_CODE", "INVALID_SESSION_INFO":
		return ErrInvalidCode
	case "SESSION_EXPIRED", "CODE_EXPIRED":
		return ErrCodeExpired
	case "INVALID_RECAPTCHA_TOKEN", "CAPTCHA_CHECK_FAILED", "MISSING_RECAPTCHA_TOKEN":
		return ErrChallengeRejected
	case "INVALID_PHONE_NUMBER", "MISSING_PHONE_NUMBER":
		return ErrInvalidPhone
	case "FEDERATED_USER_ID_ALREADY_LINKED", "EMAIL_EXISTS", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		return ErrAccountExists
	}
	return err
}
