// Package liveness is the Liveness Judge port: it decides whether a face
// still shows a live human.
package liveness

import (
	"context"
	"encoding/base64"
	"strings"

	dErrors "clocklayer/pkg/domain-errors"
)

// Threshold is the confidence a human verdict must strictly exceed.
const Threshold = 0.7

// Image is a single still frame.
type Image struct {
	ContentType string
	Data        []byte
}

// Verdict is the judge's answer. Confidence is in [0, 1].
type Verdict struct {
	IsHuman    bool    `json:"isHuman"`
	Confidence float64 `json:"confidence"`
}

// Passes reports whether the verdict admits the subject past the liveness step.
func (v Verdict) Passes() bool {
	return v.IsHuman && v.Confidence > Threshold
}

type Judge interface {
	Evaluate(ctx context.Context, img Image) (Verdict, error)
}

// DataURI renders the image as data:<mime>;base64,<payload>.
func (img Image) DataURI() string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(img.ContentType) + base64.StdEncoding.EncodedLen(len(img.Data)))
	b.WriteString("data:")
	b.WriteString(img.ContentType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(img.Data))
	return b.String()
}

// Validate checks the frame is a non-empty jpeg or png.
func (img Image) Validate() error {
	if len(img.Data) == 0 {
		return dErrors.New(dErrors.CodeValidation, "a face photo is required")
	}
	switch img.ContentType {
	case "image/jpeg", "image/png":
		return nil
	}
	return dErrors.New(dErrors.CodeValidation, "photo must be image/jpeg or image/png")
}
