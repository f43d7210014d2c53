package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5 * time.Second)

	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want %v", client.Timeout, 5*time.Second)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected a custom Transport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(5 * time.Second)
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://images.example.com/cover.png", false},
		{"http://cdn.example.org/a.jpg", false},
		{"http://10.0.0.1/a.png", true},
		{"http://172.16.0.1/a.png", true},
		{"http://192.168.1.100/a.png", true},
		{"http://127.0.0.1/a.png", true},
		{"http://localhost/a.png", true},
		{"http://LOCALHOST/a.png", true},
		{"http://169.254.169.254/latest/meta-data/", true},
		{"http://0.0.0.0/a.png", true},
		{"http://[::1]/a.png", true},
		{"http://[fd00::1]/a.png", true},
		{"", true},
		{"not-a-url", true},
		{"ftp://example.com/a.png", true},
		{"file:///etc/passwd", true},
		{"data:image/png;base64,AAAA", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateURL(%q) should have returned an error", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", tt.url, err)
			}
		})
	}
}

func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}

func TestValidateURL_ErrorKinds(t *testing.T) {
	guard := NewSSRFGuard()

	if err := guard.ValidateURL("ftp://example.com/a.png"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("ftp scheme: err = %v, want ErrInvalidURL", err)
	}
	if err := guard.ValidateURL("http://192.168.0.1/a.png"); !errors.Is(err, ErrBlockedURL) {
		t.Errorf("private IP: err = %v, want ErrBlockedURL", err)
	}
	if err := guard.ValidateURL("http://localhost/a.png"); !errors.Is(err, ErrBlockedURL) {
		t.Errorf("localhost: err = %v, want ErrBlockedURL", err)
	}
}
