package edge

import (
	"context"
	"crypto/tls"
	"errors"
	"floatfetch/internal/utils"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// Protocol preferences for HTTPProber.
const (
	ProtocolAuto  = "auto"
	ProtocolHTTP1 = "http1"
	ProtocolHTTP2 = "http2"
	ProtocolHTTP3 = "http3"
)

const (
	dialTimeout         = 5 * time.Second
	keepAliveDuration   = 30 * time.Second
	tlsHandshakeTimeout = 5 * time.Second
	idleConnTimeout     = 30 * time.Second
)

type protocolClient struct {
	name   string
	client *http.Client
}

type clientSet struct {
	primary        protocolClient
	fallbacks      []protocolClient
	http3Transport *http3.RoundTripper
}

func (c *clientSet) chain() []protocolClient {
	return append([]protocolClient{c.primary}, c.fallbacks...)
}

func (c *clientSet) names() string {
	names := make([]string, 0, 1+len(c.fallbacks))
	for _, pc := range c.chain() {
		names = append(names, pc.name)
	}
	return strings.Join(names, " -> ")
}

func (c *clientSet) Close() {
	if c == nil || c.http3Transport == nil {
		return
	}

	if err := c.http3Transport.Close(); err != nil {
		utils.Debug("Error closing HTTP/3 transport: %v", err)
	}
}

// HTTPProber measures latency as the time to response headers of a HEAD
// request. Any HTTP response counts as reachable. When the preferred protocol
// fails the next one in the chain is tried.
type HTTPProber struct {
	Scheme string
	set    *clientSet
}

// NewHTTPProber builds a prober for scheme ("http" or "https") and a protocol
// preference (auto, http1, http2, http3). Close releases the QUIC transport.
func NewHTTPProber(scheme, protocol string) *HTTPProber {
	if scheme == "" {
		scheme = "https"
	}
	// HTTP/3 and h2 negotiation both need TLS.
	if scheme != "https" {
		protocol = ProtocolHTTP1
	}
	return &HTTPProber{Scheme: scheme, set: newClientSet(protocol)}
}

func newClientSet(protocol string) *clientSet {
	buildHTTPTransport := func(forceHTTP2 bool) *http.Transport {
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 1,
			IdleConnTimeout:     idleConnTimeout,
			TLSHandshakeTimeout: tlsHandshakeTimeout,
			DisableKeepAlives:   true,
			ForceAttemptHTTP2:   forceHTTP2,
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: keepAliveDuration,
			}).DialContext,
		}

		if !forceHTTP2 {
			transport.TLSNextProto = make(map[string]func(authority string, c *tls.Conn) http.RoundTripper)
		}

		return transport
	}

	newHTTPClient := func(transport http.RoundTripper) *http.Client {
		return &http.Client{
			Transport: transport,
			// The first response is the measurement; redirects are not followed.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	http1Client := protocolClient{name: ProtocolHTTP1, client: newHTTPClient(buildHTTPTransport(false))}
	http2Client := protocolClient{name: ProtocolHTTP2, client: newHTTPClient(buildHTTPTransport(true))}

	makeHTTP3 := func() (protocolClient, *http3.RoundTripper) {
		transport := &http3.RoundTripper{
			TLSClientConfig: &tls.Config{
				NextProtos: []string{"h3"},
			},
			QUICConfig: &quic.Config{
				HandshakeIdleTimeout: tlsHandshakeTimeout,
				MaxIdleTimeout:       idleConnTimeout,
				KeepAlivePeriod:      keepAliveDuration,
			},
		}
		return protocolClient{name: ProtocolHTTP3, client: newHTTPClient(transport)}, transport
	}

	var set *clientSet
	switch protocol {
	case ProtocolHTTP1:
		set = &clientSet{primary: http1Client}
	case ProtocolHTTP2:
		set = &clientSet{primary: http2Client, fallbacks: []protocolClient{http1Client}}
	case ProtocolHTTP3:
		http3Client, transport := makeHTTP3()
		set = &clientSet{primary: http3Client, fallbacks: []protocolClient{http1Client}, http3Transport: transport}
	default:
		// QUIC is often filtered, so auto starts with TCP and only falls back to h3.
		http3Client, transport := makeHTTP3()
		set = &clientSet{primary: http2Client, fallbacks: []protocolClient{http1Client, http3Client}, http3Transport: transport}
	}
	utils.Debug("Probe transport selection: pref=%s chain=%s", protocol, set.names())
	return set
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, host string) (time.Duration, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return 0, errors.New("empty host")
	}
	target := fmt.Sprintf("%s://%s/", p.Scheme, host)

	var errs []error
	for _, pc := range p.set.chain() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		latency, err := roundTrip(ctx, pc.client, target)
		if err == nil {
			utils.Debug("Probe %s via %s: %s", host, pc.name, latency)
			return latency, nil
		}
		utils.Debug("Probe %s via %s failed: %v", host, pc.name, err)
		errs = append(errs, fmt.Errorf("%s: %w", pc.name, err))
	}
	return 0, errors.Join(errs...)
}

func roundTrip(ctx context.Context, client *http.Client, target string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	latency := time.Since(start)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return latency, nil
}

// Close releases transports held by the prober.
func (p *HTTPProber) Close() {
	p.set.Close()
}
