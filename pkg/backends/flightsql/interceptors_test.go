package flightsql

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestJWTSource(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	src := newJWTSource(JWTConfig{
		Secret:   "test-secret",
		Issuer:   "test-issuer",
		Audience: "test-audience",
		Subject:  "relay",
		TTL:      10 * time.Minute,
	})
	src.now = func() time.Time { return now }

	first, err := src.Token()
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(first, claims, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }), jwt.WithIssuer("test-issuer"), jwt.WithAudience("test-audience"))
	require.NoError(t, err)
	assert.Equal(t, "relay", claims["sub"])
	assert.Equal(t, float64(now.Add(10*time.Minute).Unix()), claims["exp"])

	now = now.Add(5 * time.Minute)
	again, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	now = now.Add(4*time.Minute + 30*time.Second)
	renewed, err := src.Token()
	require.NoError(t, err)
	assert.NotEqual(t, first, renewed)
}

func TestJWTSourceDefaultTTL(t *testing.T) {
	assert.Equal(t, time.Hour, newJWTSource(JWTConfig{Secret: "x"}).cfg.TTL)
}

func TestBearerUnaryInterceptor(t *testing.T) {
	var got []string
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		got = md.Get("authorization")
		return nil
	}

	err := staticToken("abc").unary()(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer abc"}, got)

	src := newJWTSource(JWTConfig{Secret: "k"})
	err = bearer{token: src.Token}.unary()(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "Bearer ey"))
}
