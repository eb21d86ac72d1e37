package liveness

import (
	"context"
	"net/http"

	"clocklayer/internal/judge"
)

const providerID = "liveness"

// HTTPJudge posts the frame to a remote verification endpoint.
type HTTPJudge struct {
	url    string
	apiKey string
	client *http.Client
	caller *judge.Caller
}

func NewHTTPJudge(url, apiKey string, client *http.Client, caller *judge.Caller) *HTTPJudge {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPJudge{url: url, apiKey: apiKey, client: client, caller: caller}
}

type evaluateRequest struct {
	FaceDataURI string `json:"faceDataUri"`
}

type evaluateResponse struct {
	IsHuman    *bool    `json:"isHuman"`
	Confidence *float64 `json:"confidence"`
}

func (j *HTTPJudge) Evaluate(ctx context.Context, img Image) (Verdict, error) {
	header := http.Header{}
	if j.apiKey != "" {
		header.Set("Authorization", "Bearer "+j.apiKey)
	}
	req := evaluateRequest{FaceDataURI: img.DataURI()}

	var resp evaluateResponse
	err := j.caller.Do(ctx, func(ctx context.Context) error {
		resp = evaluateResponse{}
		return judge.PostJSON(ctx, j.client, providerID, j.url, header, req, &resp)
	})
	if err != nil {
		return Verdict{}, err
	}
	if resp.IsHuman == nil || resp.Confidence == nil {
		return Verdict{}, judge.NewProviderError(judge.ErrorContractMismatch, providerID, "verdict is incomplete", nil)
	}
	c := *resp.Confidence
	if c < 0 || c > 1 {
		return Verdict{}, judge.NewProviderError(judge.ErrorContractMismatch, providerID, "confidence out of range", nil)
	}
	return Verdict{IsHuman: *resp.IsHuman, Confidence: c}, nil
}
