package flightsql

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// callLogger logs every RPC the driver makes.
type callLogger struct {
	logger zerolog.Logger
}

func (l callLogger) unary() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		l.log(method, start, err).Msg("Unary call")
		return err
	}
}

func (l callLogger) stream() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		start := time.Now()
		cs, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			l.log(method, start, err).Msg("Stream call")
			return nil, err
		}
		return &loggingClientStream{ClientStream: cs, calls: l, method: method, start: start}, nil
	}
}

func (l callLogger) log(method string, start time.Time, err error) *zerolog.Event {
	code := status.Code(err)
	event := l.logger.Debug()
	if err != nil && code != codes.Canceled {
		event = l.logger.Error().Err(err)
	}
	return event.
		Str("method", method).
		Dur("duration", time.Since(start)).
		Str("code", code.String())
}

// loggingClientStream logs once the server ends the stream.
type loggingClientStream struct {
	grpc.ClientStream
	calls            callLogger
	method           string
	start            time.Time
	messagesReceived int
	done             bool
}

func (s *loggingClientStream) RecvMsg(m any) error {
	err := s.ClientStream.RecvMsg(m)
	if err == nil {
		s.messagesReceived++
		return nil
	}
	if !s.done {
		s.done = true
		logErr := err
		if err == io.EOF {
			logErr = nil
		}
		s.calls.log(s.method, s.start, logErr).
			Int("messages_received", s.messagesReceived).
			Msg("Stream call")
	}
	return err
}

// bearer adds an authorization header to every call.
type bearer struct {
	token func() (string, error)
}

func staticToken(token string) bearer {
	return bearer{token: func() (string, error) { return token, nil }}
}

func (b bearer) outgoing(ctx context.Context) (context.Context, error) {
	token, err := b.token()
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "failed to create bearer token: %v", err)
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token), nil
}

func (b bearer) unary() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, err := b.outgoing(ctx)
		if err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (b bearer) stream() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		ctx, err := b.outgoing(ctx)
		if err != nil {
			return nil, err
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}

// JWTConfig describes HS256 tokens minted for each call.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Subject  string
	// TTL is the token lifetime. Zero means one hour.
	TTL time.Duration
}

// jwtSource mints tokens and reuses one until it is close to expiry.
type jwtSource struct {
	cfg JWTConfig
	now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newJWTSource(cfg JWTConfig) *jwtSource {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &jwtSource{cfg: cfg, now: time.Now}
}

func (j *jwtSource) Token() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	if j.token != "" && now.Add(j.cfg.TTL/10).Before(j.expires) {
		return j.token, nil
	}

	expires := now.Add(j.cfg.TTL)
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}
	if j.cfg.Subject != "" {
		claims["sub"] = j.cfg.Subject
	}
	if j.cfg.Issuer != "" {
		claims["iss"] = j.cfg.Issuer
	}
	if j.cfg.Audience != "" {
		claims["aud"] = j.cfg.Audience
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(j.cfg.Secret))
	if err != nil {
		return "", err
	}
	j.token, j.expires = signed, expires
	return signed, nil
}
