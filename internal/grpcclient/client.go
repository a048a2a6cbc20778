package grpcclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/edu-admin/internal/faceencoder"
	"github.com/example/edu-admin/internal/logging"
)

// encodeMethod is the unary RPC exposed by the face encoder sidecar. It takes
// the raw image bytes and answers with {"faces": n, "encoding": [...]}.
const encodeMethod = "/faceencoder.v1.FaceEncoder/Encode"

// DialFaceEncoder returns a ready-to-use client for the face encoder service.
func DialFaceEncoder(ctx context.Context, addr string, timeout time.Duration, logger *zap.Logger) (faceencoder.Client, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_face_encoder", "", err)
		logger.Error("failed to dial face encoder", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewFaceEncoder(conn, timeout, logger), conn, nil
}

// NewFaceEncoder wraps an existing connection.
func NewFaceEncoder(conn grpc.ClientConnInterface, timeout time.Duration, logger *zap.Logger) faceencoder.Client {
	return &grpcFaceEncoder{conn: conn, timeout: timeout, logger: logger.Named("face_encoder")}
}

type grpcFaceEncoder struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
	logger  *zap.Logger
}

func (g *grpcFaceEncoder) Encode(ctx context.Context, image []byte) (*faceencoder.Result, error) {
	requestID := logging.RequestIDFromContext(ctx)
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, encodeMethod, wrapperspb.Bytes(image), resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.encode_face", requestID, err)
		g.logger.Error("face encoder call failed", zap.Error(wrapped), zap.Int("image_bytes", len(image)))
		return nil, wrapped
	}

	result, err := decodeResult(resp)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.decode_face", requestID, err)
	}
	return result, nil
}

func decodeResult(resp *structpb.Struct) (*faceencoder.Result, error) {
	fields := resp.GetFields()
	faces, ok := fields["faces"]
	if !ok {
		return nil, errors.New("response is missing faces")
	}
	result := &faceencoder.Result{Faces: int(faces.GetNumberValue())}

	values := fields["encoding"].GetListValue().GetValues()
	if len(values) == 0 {
		return result, nil
	}
	result.Vector = make([]float32, len(values))
	for i, v := range values {
		if _, isNumber := v.GetKind().(*structpb.Value_NumberValue); !isNumber {
			return nil, fmt.Errorf("encoding[%d] is not a number", i)
		}
		result.Vector[i] = float32(v.GetNumberValue())
	}
	return result, nil
}
