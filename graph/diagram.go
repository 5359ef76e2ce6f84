package graph

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	startNode = "__start__"
	endNode   = "__end__"
)

// Diagram renders the state graph as Mermaid flowchart text.
func (g *Graph) Diagram() string { return Diagram() }

// Diagram renders the static state graph as Mermaid flowchart text.
func Diagram() string {
	var b strings.Builder

	b.WriteString("---\nconfig:\n  flowchart:\n    curve: linear\n---\n")
	b.WriteString("graph TD;\n")
	fmt.Fprintf(&b, "\t%s([<p>%s</p>]):::first\n", startNode, startNode)
	fmt.Fprintf(&b, "\t%s(%s)\n", StateReasoning, StateReasoning)
	fmt.Fprintf(&b, "\t%s(%s)\n", StateToolDispatch, StateToolDispatch)
	fmt.Fprintf(&b, "\t%s([<p>%s</p>]):::last\n", endNode, endNode)
	fmt.Fprintf(&b, "\t%s --> %s;\n", startNode, StateReasoning)

	for _, e := range Edges() {
		to := string(e.To)
		if e.To == StateTerminal {
			to = endNode
		}

		arrow := "-->"
		if e.Conditional {
			arrow = "-.->"
		}

		if e.Label != "" {
			fmt.Fprintf(&b, "\t%s %s|%s| %s;\n", e.From, arrow, e.Label, to)
		} else {
			fmt.Fprintf(&b, "\t%s %s %s;\n", e.From, arrow, to)
		}
	}

	b.WriteString("\tclassDef default fill:#f2f0ff,line-height:1.2\n")
	b.WriteString("\tclassDef first fill-opacity:0\n")
	b.WriteString("\tclassDef last fill:#bfb6fc\n")

	return b.String()
}

// Renderer turns Mermaid text into an image.
type Renderer interface {
	Render(ctx context.Context, mermaid string) ([]byte, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, mermaid string) ([]byte, error)

// Render implements Renderer.
func (f RendererFunc) Render(ctx context.Context, mermaid string) ([]byte, error) {
	return f(ctx, mermaid)
}

// DefaultMermaidInkURL is the public mermaid.ink endpoint.
const DefaultMermaidInkURL = "https://mermaid.ink"

// MermaidInkRenderer renders PNGs through the mermaid.ink web service.
type MermaidInkRenderer struct {
	BaseURL string
	Client  *http.Client
}

// NewMermaidInkRenderer creates a renderer against the public endpoint.
func NewMermaidInkRenderer() *MermaidInkRenderer {
	return &MermaidInkRenderer{
		BaseURL: DefaultMermaidInkURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Render implements Renderer.
func (r *MermaidInkRenderer) Render(ctx context.Context, mermaid string) ([]byte, error) {
	base := r.BaseURL
	if base == "" {
		base = DefaultMermaidInkURL
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	url := strings.TrimRight(base, "/") + "/img/" + base64.URLEncoding.EncodeToString([]byte(mermaid)) + "?type=png"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mermaid.ink: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mermaid.ink: status %d", resp.StatusCode)
	}

	img, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("mermaid.ink: %w", err)
	}

	return img, nil
}

// WriteDiagram renders the graph diagram and writes it to path.
func WriteDiagram(ctx context.Context, r Renderer, path string) error {
	if r == nil {
		return fmt.Errorf("graph diagram: no renderer")
	}

	img, err := r.Render(ctx, Diagram())
	if err != nil {
		return fmt.Errorf("graph diagram: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("graph diagram: %w", err)
		}
	}

	if err := os.WriteFile(path, img, 0o644); err != nil {
		return fmt.Errorf("graph diagram: %w", err)
	}

	return nil
}
