package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient_SetsTimeoutAndTransport(t *testing.T) {
	guard := NewSSRFGuard()
	timeout := 5 * time.Second
	client := guard.NewSafeClient(timeout, 5*1024*1024)

	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
	// safeurlはDialerのControlフックでIPを検証するため、標準Transportではない
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected custom Transport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(5*time.Second, 5*1024*1024)
	if _, err := client.Get(ts.URL + "/snapshots/weibo/latest.json"); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL_Accepts(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"https://api.trendlens.example.com/snapshots/weibo/latest.json",
		"https://example.com",
		"http://trends.example.org/rss/zhihu.xml",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

func TestValidateURL_Rejects(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name string
		url  string
	}{
		{"プライベートIP 10/8", "http://10.0.0.1/snapshots/x/latest.json"},
		{"プライベートIP 172.16/12", "http://172.31.255.255/snapshots/x/latest.json"},
		{"プライベートIP 192.168/16", "http://192.168.1.100/snapshots/x/latest.json"},
		{"ループバック", "http://127.0.0.2/snapshots/x/latest.json"},
		{"localhost", "http://localhost/snapshots/x/latest.json"},
		{"IPv6ループバック", "http://[::1]/snapshots/x/latest.json"},
		{"リンクローカル", "http://169.254.0.1/"},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"ゼロアドレス", "http://0.0.0.0/"},
		{"CGNAT", "http://100.64.1.1/"},
		{"IPv4射影ループバック", "http://[::ffff:127.0.0.1]/"},
		{"localhostサブドメイン", "http://api.localhost/"},
		{"末尾ドット付きlocalhost", "http://LOCALHOST./"},
		{"GCPメタデータホスト", "http://metadata.google.internal/computeMetadata/v1/"},
		{"空文字列", ""},
		{"スキームなし", "not-a-url"},
		{"ftpスキーム", "ftp://example.com/latest.json"},
		{"fileスキーム", "file:///etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.url); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", tt.url)
			}
		})
	}
}

func TestPrivateNetworkGuard_AllowsInternalHosts(t *testing.T) {
	guard := NewPrivateNetworkGuard()

	for _, u := range []string{
		"http://10.0.0.1:8081/snapshots/weibo/latest.json",
		"http://localhost:9000/snapshots/weibo/latest.json",
		"http://snapshot-api.internal/snapshots/weibo/latest.json",
	} {
		if err := guard.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) returned error: %v", u, err)
		}
	}
}

func TestPrivateNetworkGuard_StillChecksScheme(t *testing.T) {
	guard := NewPrivateNetworkGuard()

	for _, u := range []string{"", "file:///etc/passwd", "gopher://example.com"} {
		if err := guard.ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) should have returned error", u)
		}
	}
}

func TestPrivateNetworkGuard_ClientReachesLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewPrivateNetworkGuard().NewSafeClient(5*time.Second, 1024)
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("StatusCode = %d, want 204", resp.StatusCode)
	}
}

func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
	var _ SSRFGuardService = NewPrivateNetworkGuard()
}
