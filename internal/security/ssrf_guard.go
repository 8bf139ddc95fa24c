// Package security は外部URL取得とHTML処理のセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrResponseTooLarge はレスポンスボディが上限サイズを超えた場合のエラー。
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// URLGuard はフィード・Webページ取得時のSSRF防止機能のインターフェース。
// フィード登録時の事前検証と、取り込み時のHTTPクライアント生成の両方で使用される。
type URLGuard interface {
	// ValidateURL はDNS解決を伴わない静的な検証を行う。
	ValidateURL(rawURL string) error
	// Client はプライベートIP等への接続をダイヤル時に拒否するHTTPクライアントを返す。
	Client() *http.Client
	// ReadBody はレスポンスボディを上限サイズまで読み込む。
	ReadBody(r io.Reader) ([]byte, error)
}

var allowedSchemes = []string{"http", "https"}

// blockedNetworks は事前検証で拒否するネットワーク範囲。
// ダイヤル時の検証はsafeurl側で行われる。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		// クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// SSRFGuard はURLGuardの実装。
// safeurlのクライアントは生成コストがあるため起動時に1回だけ作る。
type SSRFGuard struct {
	client      *http.Client
	maxBodySize int64
}

// NewSSRFGuard はSSRFGuardを生成する。
// timeoutはHTTPクライアント全体のタイムアウト、maxBodySizeは読み込むボディの上限バイト数。
func NewSSRFGuard(timeout time.Duration, maxBodySize int64) *SSRFGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &SSRFGuard{
		client:      safeurl.Client(config).Client,
		maxBodySize: maxBodySize,
	}
}

// Client はSSRF防止機能付きのHTTPクライアントを返す。
func (g *SSRFGuard) Client() *http.Client {
	return g.client
}

// ReadBody はボディをmaxBodySizeまで読み込み、超過した場合はErrResponseTooLargeを返す。
func (g *SSRFGuard) ReadBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, g.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > g.maxBodySize {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}

// ValidateURL はURLの安全性を事前に検証する。
// DNS再バインディングはClientのダイヤル時検証で防ぐ。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("blocked IP address: %s", ip.String())
			}
		}
		return nil
	}

	if lower := strings.ToLower(host); lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

var _ URLGuard = (*SSRFGuard)(nil)
