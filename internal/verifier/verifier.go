// Package verifier defines the external face-verification capability and
// its DeepFace REST backend. The gRPC backend lives in internal/grpcclient.
package verifier

import (
	"context"
	"errors"

	"github.com/example/face-match/internal/imaging"
)

// ErrNoVerdict is returned when the backend answers without a verified flag.
var ErrNoVerdict = errors.New("verifier response has no verified field")

// Options selects the embedding model and face-detector backend.
type Options struct {
	Model    string
	Detector string
}

// Verification is the backend's answer for one image pair. Only Verified
// drives matching; the rest is kept for logs.
type Verification struct {
	Verified  bool
	Distance  float64
	Threshold float64
	Model     string
	Detector  string
}

// Verifier decides whether two images show the same person.
type Verifier interface {
	Verify(ctx context.Context, img1, img2 *imaging.PixelArray, opts Options) (*Verification, error)
}
