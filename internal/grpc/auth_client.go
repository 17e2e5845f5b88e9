package grpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protowire"
)

const validateTokenMethod = "/auth.AuthService/ValidateToken"

// Field numbers of auth.ValidateTokenRequest and auth.ValidateTokenResponse.
const (
	requestTokenField   protowire.Number = 1
	responseValidField  protowire.Number = 1
	responseUserIDField protowire.Number = 2
)

var ErrInvalidToken = errors.New("invalid token")

// Invoker is the subset of *grpc.ClientConn the auth client needs.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// AuthClient validates bearer tokens against auth-service.
type AuthClient struct {
	conn Invoker
}

// NewAuthClient constructs the wrapper.
func NewAuthClient(conn Invoker) *AuthClient {
	return &AuthClient{conn: conn}
}

// ValidateToken verifies the JWT and returns the authenticated user id.
func (a *AuthClient) ValidateToken(ctx context.Context, token string) (int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrInvalidToken
	}

	req := &rawFrame{data: encodeValidateRequest(token)}
	resp := &rawFrame{}
	if err := a.conn.Invoke(ctx, validateTokenMethod, req, resp, grpc.ForceCodec(rawCodec{})); err != nil {
		return 0, err
	}

	valid, userID, err := decodeValidateResponse(resp.data)
	if err != nil {
		return 0, err
	}
	if !valid || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return int(userID), nil
}

func encodeValidateRequest(token string) []byte {
	b := protowire.AppendTag(nil, requestTokenField, protowire.BytesType)
	return protowire.AppendString(b, token)
}

func decodeValidateResponse(b []byte) (bool, int64, error) {
	var (
		valid  bool
		userID int64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return false, 0, fmt.Errorf("decode validate response: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.VarintType && (num == responseValidField || num == responseUserIDField) {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return false, 0, fmt.Errorf("decode validate response: %w", protowire.ParseError(m))
			}
			b = b[m:]
			if num == responseValidField {
				valid = protowire.DecodeBool(v)
			} else {
				userID = int64(v)
			}
			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return false, 0, fmt.Errorf("decode validate response: %w", protowire.ParseError(m))
		}
		b = b[m:]
	}
	return valid, userID, nil
}
