package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/provider"
)

// newCall собирает Call, Send которого запоминает отправленный запрос.
func newCall(params map[string]any, req *provider.Request) (*provider.Call, *[]*provider.Request) {
	var sent []*provider.Request
	return &provider.Call{
		Config:  &domain.ProviderConfig{Name: "test"},
		Params:  params,
		Request: req,
		Send: func(_ context.Context, r *provider.Request) ([]byte, error) {
			sent = append(sent, r)
			return []byte(`{"ok":true}`), nil
		},
	}, &sent
}

// --- Registry ---

func TestRegistry_Get(t *testing.T) {
	r := DefaultRegistry(Options{})
	if err := r.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, name := range []string{JWTTokenName, ReferenceImagesName, ReasoningModeName} {
		h, err := r.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if h.Name() != name {
			t.Errorf("Name() = %q, want %q", h.Name(), name)
		}
	}

	if got := r.Names(); len(got) != 3 {
		t.Errorf("Names() = %v", got)
	}
}

func TestRegistry_CachesHandlers(t *testing.T) {
	created := 0
	r := NewRegistry(map[string]Factory{
		"counting": func() provider.Handler {
			created++
			return NewReasoningMode()
		},
	})

	for i := 0; i < 3; i++ {
		if _, err := r.Get("counting"); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Errorf("factory called %d times, want 1", created)
	}
}

func TestRegistry_Errors(t *testing.T) {
	r := DefaultRegistry(Options{})

	tests := []struct {
		name    string
		wantErr error
	}{
		{"", ErrIllegalHandlerName},
		{"../etc/passwd", ErrIllegalHandlerName},
		{"a/b", ErrIllegalHandlerName},
		{`a\b`, ErrIllegalHandlerName},
		{"..", ErrIllegalHandlerName},
		{"unknown", ErrHandlerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Get(tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Get(%q) error = %v, want %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

// --- jwt_token ---

func TestJWTToken_ReplacesAuthorization(t *testing.T) {
	h := NewJWTToken(time.Minute)
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	req := &provider.Request{Headers: map[string]string{
		"authorization": "Bearer static",
		"AUTHORIZATION": "Bearer other",
		"Content-Type":  "application/json",
	}}
	call, sent := newCall(map[string]any{"api_key": "ak-1.secret-1"}, req)

	if _, err := h.Call(context.Background(), call); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected one request sent, got %d", len(*sent))
	}

	count := 0
	var auth string
	for k, v := range req.Headers {
		if k == "Authorization" || k == "authorization" || k == "AUTHORIZATION" {
			count++
			auth = v
		}
	}
	if count != 1 {
		t.Fatalf("expected a single Authorization header, got %v", req.Headers)
	}
	if req.Header("Content-Type") != "application/json" {
		t.Error("unrelated headers must survive")
	}

	raw := auth[len("Bearer "):]
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte("secret-1"), nil
	}, jwt.WithTimeFunc(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.Issuer != "ak-1" {
		t.Errorf("iss = %q, want ak-1", claims.Issuer)
	}
	if !claims.ExpiresAt.Time.Equal(fixed.Add(time.Minute)) {
		t.Errorf("exp = %v", claims.ExpiresAt)
	}
}

func TestJWTToken_KeyFromDefaultParams(t *testing.T) {
	h := NewJWTToken(0)
	call, sent := newCall(nil, &provider.Request{})
	call.Config.DefaultParams = map[string]any{"api_key": "id.secret"}

	if _, err := h.Query(context.Background(), call); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*sent) != 1 || call.Request.Header("Authorization") == "" {
		t.Error("query should be signed and sent")
	}
}

func TestJWTToken_BadKey(t *testing.T) {
	h := NewJWTToken(0)
	for _, key := range []string{"", "no-dot", ".secret", "id."} {
		call, sent := newCall(map[string]any{"api_key": key}, &provider.Request{})
		_, err := h.Call(context.Background(), call)
		if !errors.Is(err, ErrBadCredentials) {
			t.Errorf("key %q: expected ErrBadCredentials, got %v", key, err)
		}
		if len(*sent) != 0 {
			t.Errorf("key %q: request must not be sent", key)
		}
	}
}

// --- reference_images ---

func TestReferenceImages_SplitsArray(t *testing.T) {
	req := &provider.Request{Body: map[string]any{
		"prompt":           "fly",
		"reference_images": []any{"https://a.png", "https://b.png"},
	}}
	call, _ := newCall(map[string]any{"reference_images": []any{"https://a.png", "https://b.png"}}, req)

	if _, err := NewReferenceImages().Call(context.Background(), call); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := req.Body.(map[string]any)
	if _, ok := body["reference_images"]; ok {
		t.Error("generic field should be removed")
	}
	if body[FirstFrameField] != "https://a.png" || body[LastFrameField] != "https://b.png" {
		t.Errorf("body = %v", body)
	}
	if body["prompt"] != "fly" {
		t.Error("other fields must survive")
	}
}

func TestReferenceImages_SingleImageFromStringBody(t *testing.T) {
	req := &provider.Request{Body: `{"prompt":"x","reference_images":["https://only.png"]}`}
	call, _ := newCall(nil, req)

	if _, err := NewReferenceImages().Call(context.Background(), call); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body, ok := req.Body.(map[string]any)
	if !ok {
		t.Fatalf("body should be decoded into a map, got %T", req.Body)
	}
	if body[FirstFrameField] != "https://only.png" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body[LastFrameField]; ok {
		t.Error("second field must be absent for a single image")
	}
}

// --- reasoning_mode ---

func TestReasoningMode(t *testing.T) {
	tests := []struct {
		name         string
		reasoning    any
		wantThinking bool
	}{
		{"enabled bool", true, true},
		{"enabled string", "true", true},
		{"disabled", false, false},
		{"absent", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &provider.Request{Body: map[string]any{
				"messages":    []any{},
				"temperature": 0.7,
				"top_p":       0.9,
				"reasoning":   tt.reasoning,
			}}
			call, _ := newCall(map[string]any{"reasoning": tt.reasoning}, req)

			if _, err := NewReasoningMode().Call(context.Background(), call); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			body := req.Body.(map[string]any)
			_, hasThinking := body["thinking"]
			_, hasTemp := body["temperature"]
			_, hasReasoning := body["reasoning"]

			if hasThinking != tt.wantThinking {
				t.Errorf("thinking present = %v, want %v", hasThinking, tt.wantThinking)
			}
			if hasTemp == tt.wantThinking {
				t.Errorf("temperature present = %v with reasoning %v", hasTemp, tt.wantThinking)
			}
			if hasReasoning {
				t.Error("reasoning flag must not reach the vendor")
			}
		})
	}
}
