// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes は外部サービス呼び出しで許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は信頼済みとして明示されない限り接続を拒否するネットワーク範囲。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
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

// OutboundConfig は外部サービス呼び出し用HTTPクライアントの設定。
type OutboundConfig struct {
	Timeout time.Duration
	// Upstreams は接続先として設定されたベースURL。ホストとポートはこの集合に制限される。
	Upstreams []string
	// TrustedCIDRs はプライベートネットワーク上の内部サービス（予測サービス等）への接続を許可する範囲。
	TrustedCIDRs []string
}

// NewOutboundClient は設定済みの上流サービスにのみ接続できるHTTPクライアントを生成する。
// safeurlがDNS解決後のIPアドレスをDialerで検証するため、
// 許可ホストがプライベートIPへ解決される場合もTrustedCIDRs外であれば拒否される。
func NewOutboundClient(cfg OutboundConfig) (*http.Client, error) {
	hosts := make([]string, 0, len(cfg.Upstreams))
	ports := map[int]struct{}{}

	for _, raw := range cfg.Upstreams {
		if raw == "" {
			continue
		}
		host, port, err := ValidateUpstreamURL(raw, cfg.TrustedCIDRs)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, host)
		ports[port] = struct{}{}
	}

	builder := safeurl.GetConfigBuilder().
		SetTimeout(cfg.Timeout).
		SetAllowedSchemes(allowedSchemes...)

	if len(hosts) > 0 {
		portList := make([]int, 0, len(ports))
		for p := range ports {
			portList = append(portList, p)
		}
		builder = builder.SetAllowedHosts(hosts...).SetAllowedPorts(portList...)
	} else {
		builder = builder.SetAllowedPorts(80, 443)
	}
	if len(cfg.TrustedCIDRs) > 0 {
		builder = builder.SetAllowedIPsCIDR(cfg.TrustedCIDRs...)
	}

	return safeurl.Client(builder.Build()).Client, nil
}

// ValidateUpstreamURL は上流サービスのベースURLを静的に検証し、ホスト名とポート番号を返す。
// IPアドレスで指定されたホストはブロック対象範囲にあればtrustedに含まれる場合のみ許可する。
func ValidateUpstreamURL(rawURL string, trusted []string) (string, int, error) {
	if rawURL == "" {
		return "", 0, fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return "", 0, fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("empty host in URL: %s", rawURL)
	}

	port := 443
	if scheme == "http" {
		port = 80
	}
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return "", 0, fmt.Errorf("invalid port in URL: %s", rawURL)
		}
	}

	if ip := net.ParseIP(host); ip != nil && isBlockedIP(ip) && !inCIDRs(ip, trusted) {
		return "", 0, fmt.Errorf("blocked IP address: %s", ip.String())
	}

	return host, port, nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func inCIDRs(ip net.IP, cidrs []string) bool {
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
