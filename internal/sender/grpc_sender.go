package sender

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// SendTextMethod is the agent's unary RPC. Request and response are
// google.protobuf.Struct: {"phone", "body"} -> {"success", "error_message"}.
const SendTextMethod = "/messaging.v1.AgentService/SendText"

type GRPCSender struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

func DialGRPC(addr string, logger *zap.Logger, opts ...grpc.DialOption) (*GRPCSender, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial messaging agent %s: %w", addr, err)
	}
	logger.Info("messaging agent gRPC client ready", zap.String("addr", addr))
	return &GRPCSender{conn: conn, logger: logger}, nil
}

func (s *GRPCSender) Send(ctx context.Context, phone, body string) error {
	req, err := structpb.NewStruct(map[string]any{
		"phone": phone,
		"body":  body,
	})
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, SendTextMethod, req, resp); err != nil {
		return fmt.Errorf("agent rpc: %w", err)
	}

	fields := resp.GetFields()
	if fields["success"].GetBoolValue() {
		return nil
	}
	msg := fields["error_message"].GetStringValue()
	if msg == "" {
		msg = "agent rejected message"
	}
	return errors.New(msg)
}

func (s *GRPCSender) Close() error {
	return s.conn.Close()
}
