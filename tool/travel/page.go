package travel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/tool"
	"golang.org/x/net/html"
)

// ErrNonPublicAddress is returned when fetch_page would connect to a
// loopback, private, link-local or otherwise non-public address.
var ErrNonPublicAddress = errors.New("non-public address")

type pageFetcher struct {
	client   *http.Client
	maxBytes int64
	maxChars int
}

func newPageFetcher(opts Options) *pageFetcher {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	if !opts.AllowPrivateNetworks {
		client = publicOnlyClient(client)
	}

	return &pageFetcher{client: client, maxBytes: opts.MaxPageBytes, maxChars: opts.MaxPageChars}
}

// publicOnlyClient copies base with a transport whose dialer refuses
// non-public addresses. The check runs on the resolved IP of every
// connection, redirects included. Proxies are disabled so the dialed
// address is the target itself.
func publicOnlyClient(base *http.Client) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   refuseNonPublic,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	c := *base
	c.Transport = transport

	return &c
}

func refuseNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNonPublicAddress, host)
	}

	if !isPublicAddr(addr) {
		return fmt.Errorf("%w: %s", ErrNonPublicAddress, addr)
	}

	return nil
}

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()

	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		sharedAddressSpace.Contains(addr):
		return false
	}

	return true
}

type fetchPageArgs struct {
	URL string `json:"url" description:"Absolute http(s) URL of the page to read"`
}

// Page is the result of fetch_page.
type Page struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
}

func (p *pageFetcher) fetchPageTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"fetch_page",
		"Download a web page (for example a search result) and return its visible text.",
		fetchPageArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			var in fetchPageArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			u, err := url.Parse(in.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, fmt.Errorf("invalid url %q: only absolute http(s) URLs are supported", in.URL)
			}

			req, err := http.NewRequestWithContext(tc.Context(), http.MethodGet, u.String(), nil)
			if err != nil {
				return nil, err
			}

			resp, err := p.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
			}

			// limit body to avoid huge transfers
			lr := &io.LimitedReader{R: resp.Body, N: p.maxBytes}

			title, text, err := htmlToText(lr)
			if err != nil {
				return nil, err
			}

			page := Page{URL: u.String(), Title: title, Text: text, Truncated: lr.N == 0}
			if p.maxChars > 0 && len([]rune(page.Text)) > p.maxChars {
				page.Text = string([]rune(page.Text)[:p.maxChars])
				page.Truncated = true
			}

			return page, nil
		},
	)
}

// htmlToText returns the document title and its visible text with
// whitespace compacted. Script, style and noscript content is skipped.
func htmlToText(r io.Reader) (string, string, error) {
	node, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	if node == nil {
		return "", "", errors.New("empty document")
	}

	var (
		b     strings.Builder
		title string
	)

	extractText(node, &b, &title, false)

	return strings.TrimSpace(title), compactWhitespace(b.String()), nil
}

func extractText(n *html.Node, b *strings.Builder, title *string, inHidden bool) {
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "template":
			inHidden = true
		case "title":
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode && *title == "" {
				*title = n.FirstChild.Data
			}

			inHidden = true
		case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "section", "article":
			b.WriteString("\n")
		}
	}

	if !inHidden && n.Type == html.TextNode {
		b.WriteString(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, b, title, inHidden)
	}
}

func compactWhitespace(s string) string {
	s = strings.NewReplacer("\t", " ", "\r", " ").Replace(s)

	lines := strings.Split(s, "\n")
	out := lines[:0]

	for _, ln := range lines {
		if ln = strings.Join(strings.Fields(ln), " "); ln != "" {
			out = append(out, ln)
		}
	}

	return strings.Join(out, "\n")
}
