// Package grpcclient is the gRPC face verifier backend. Images travel as
// base64 PNG inside google.protobuf.Struct messages; the sidecar should
// raise its MaxRecvMsgSize above gRPC's 4 MB default to fit two photos.
package grpcclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/face-match/internal/imaging"
	"github.com/example/face-match/internal/logging"
	"github.com/example/face-match/internal/verifier"
)

// VerifyMethod is the unary method served by the face verification sidecar.
// Requests and responses are google.protobuf.Struct messages.
const VerifyMethod = "/facematch.v1.FaceVerifier/Verify"

// DialVerifier returns a ready-to-use gRPC verifier. Extra options are
// appended after the defaults.
func DialVerifier(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (verifier.Verifier, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_verifier", "", err)
		logger.Error("failed to dial face verifier", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return &grpcVerifier{conn: conn, logger: logger.Named("grpc_verifier")}, conn, nil
}

type grpcVerifier struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

func imageValue(px *imaging.PixelArray) (map[string]interface{}, error) {
	encoded, err := px.EncodePNG()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"width":    px.Width,
		"height":   px.Height,
		"encoding": "png",
		"data":     base64.StdEncoding.EncodeToString(encoded),
	}, nil
}

func (g *grpcVerifier) Verify(ctx context.Context, img1, img2 *imaging.PixelArray, opts verifier.Options) (*verifier.Verification, error) {
	v1, err := imageValue(img1)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.encode_image", "", err)
	}
	v2, err := imageValue(img2)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.encode_image", "", err)
	}

	req, err := structpb.NewStruct(map[string]interface{}{
		"img1":             v1,
		"img2":             v2,
		"model_name":       opts.Model,
		"detector_backend": opts.Detector,
	})
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.build_request", "", err)
	}

	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, VerifyMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.verify", "", err)
		g.logger.Warn("face verifier call failed", zap.Error(wrapped))
		return nil, wrapped
	}

	return parseVerification(resp, opts)
}

func parseVerification(resp *structpb.Struct, opts verifier.Options) (*verifier.Verification, error) {
	fields := resp.GetFields()
	verified, ok := fields["verified"].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return nil, fmt.Errorf("grpcclient.verify: %w", verifier.ErrNoVerdict)
	}

	out := &verifier.Verification{
		Verified:  verified.BoolValue,
		Distance:  fields["distance"].GetNumberValue(),
		Threshold: fields["threshold"].GetNumberValue(),
		Model:     opts.Model,
		Detector:  opts.Detector,
	}
	if model := fields["model"].GetStringValue(); model != "" {
		out.Model = model
	}
	if detector := fields["detector_backend"].GetStringValue(); detector != "" {
		out.Detector = detector
	}
	return out, nil
}
