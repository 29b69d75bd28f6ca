package reply

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Printer writes message views to a terminal. Markdown bodies are rendered
// as styled plain text. Audio is only announced, never played.
type Printer struct {
	w       io.Writer
	md      goldmark.Markdown
	noColor bool
	botName string
}

// PrinterOption is a functional option for Printer
type PrinterOption func(*Printer)

// WithNoColor disables ANSI styling
func WithNoColor() PrinterOption {
	return func(p *Printer) {
		p.noColor = true
	}
}

// WithBotName sets the label shown for assistant messages
func WithBotName(name string) PrinterOption {
	return func(p *Printer) {
		p.botName = name
	}
}

func NewPrinter(w io.Writer, opts ...PrinterOption) *Printer {
	p := &Printer{
		w:       w,
		md:      goldmark.New(goldmark.WithExtensions(extension.Linkify)),
		botName: "Sahayak",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Print writes one message. index is the position of the message in the
// log and is what /play refers to.
func (p *Printer) Print(index int, v View) error {
	var sb strings.Builder

	switch v.Sender {
	case model.SenderBot:
		sb.WriteString(p.style(color.FgGreen, color.Bold).Sprintf("[%d] %s", index, p.botName))
	default:
		sb.WriteString(p.style(color.FgBlue, color.Bold).Sprintf("[%d] You", index))
	}
	sb.WriteString(p.style(color.Faint).Sprint("  " + v.Timestamp))
	sb.WriteString("\n")

	if body := p.Markdown(v.Body); body != "" {
		sb.WriteString(body)
		sb.WriteString("\n")
	}

	if v.Audio != nil {
		sb.WriteString(p.style(color.FgMagenta).Sprintf("  ♪ audio reply available, type /play %d", index))
		sb.WriteString("\n")
	}
	if v.Attachment != nil {
		sb.WriteString(p.style(color.FgCyan).Sprintf("  📄 %s: %s", v.Attachment.Label, v.Attachment.URL))
		sb.WriteString("\n")
	}
	if len(v.Sources) > 0 {
		sb.WriteString(p.style(color.Faint).Sprint("  Sources:"))
		sb.WriteString("\n")
		for i, src := range v.Sources {
			sb.WriteString(p.style(color.Faint).Sprintf("    [%d] %s", i+1, src))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")

	if _, err := io.WriteString(p.w, sb.String()); err != nil {
		return goerr.Wrap(err, "failed to write message")
	}
	return nil
}

// Notice writes a one-line status or warning outside the conversation log
func (p *Printer) Notice(format string, args ...any) {
	fmt.Fprintln(p.w, p.style(color.FgYellow).Sprintf(format, args...))
}

// Markdown renders markdown source as terminal text
func (p *Printer) Markdown(src string) string {
	source := []byte(src)
	doc := p.md.Parser().Parse(text.NewReader(source))

	r := &termRenderer{p: p, src: source}
	_ = ast.Walk(doc, r.walk)

	return strings.TrimRight(r.sb.String(), "\n")
}

func (p *Printer) style(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.noColor {
		c.DisableColor()
	}
	return c
}

type listState struct {
	ordered bool
	next    int
}

type termRenderer struct {
	p   *Printer
	src []byte
	sb  strings.Builder

	bold, italic, code int
	lists              []listState
}

func (r *termRenderer) write(s string) {
	var attrs []color.Attribute
	if r.bold > 0 {
		attrs = append(attrs, color.Bold)
	}
	if r.italic > 0 {
		attrs = append(attrs, color.Italic)
	}
	if r.code > 0 {
		attrs = append(attrs, color.FgCyan)
	}
	if len(attrs) == 0 {
		r.sb.WriteString(s)
		return
	}
	r.sb.WriteString(r.p.style(attrs...).Sprint(s))
}

// blockEnd closes a block, separating top level blocks by a blank line
func (r *termRenderer) blockEnd(n ast.Node) {
	r.sb.WriteString("\n")
	if n.Parent() != nil && n.Parent().Kind() == ast.KindDocument && n.NextSibling() != nil {
		r.sb.WriteString("\n")
	}
}

func (r *termRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.bold++
		} else {
			r.bold--
			r.blockEnd(n)
		}

	case *ast.Paragraph, *ast.TextBlock:
		if !entering {
			r.blockEnd(n)
		}

	case *ast.Blockquote:
		if entering {
			r.italic++
		} else {
			r.italic--
		}

	case *ast.Text:
		if entering {
			r.write(string(node.Segment.Value(r.src)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.sb.WriteString("\n")
			}
		}

	case *ast.String:
		if entering {
			r.write(string(node.Value))
		}

	case *ast.Emphasis:
		delta := 1
		if !entering {
			delta = -1
		}
		if node.Level >= 2 {
			r.bold += delta
		} else {
			r.italic += delta
		}

	case *ast.CodeSpan:
		if entering {
			r.code++
		} else {
			r.code--
		}

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			r.code++
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				r.write("    " + strings.TrimRight(string(seg.Value(r.src)), "\n"))
				r.sb.WriteString("\n")
			}
			r.code--
			return ast.WalkSkipChildren, nil
		}
		if n.NextSibling() != nil {
			r.sb.WriteString("\n")
		}

	case *ast.List:
		if entering {
			r.lists = append(r.lists, listState{ordered: node.IsOrdered(), next: node.Start})
		} else {
			r.lists = r.lists[:len(r.lists)-1]
			if len(r.lists) == 0 && n.NextSibling() != nil {
				r.sb.WriteString("\n")
			}
		}

	case *ast.ListItem:
		if entering && len(r.lists) > 0 {
			top := &r.lists[len(r.lists)-1]
			r.sb.WriteString(strings.Repeat("  ", len(r.lists)-1))
			if top.ordered {
				r.sb.WriteString(strconv.Itoa(top.next) + ". ")
				top.next++
			} else {
				r.sb.WriteString("• ")
			}
		}

	case *ast.Link:
		if !entering {
			dest := string(node.Destination)
			if dest != "" {
				r.write(" (" + dest + ")")
			}
		}

	case *ast.AutoLink:
		if entering {
			r.write(string(node.URL(r.src)))
			return ast.WalkSkipChildren, nil
		}

	case *ast.Image:
		if entering {
			r.write("[image] " + string(node.Destination))
			return ast.WalkSkipChildren, nil
		}

	case *ast.ThematicBreak:
		if entering {
			r.sb.WriteString(strings.Repeat("─", 24))
		} else {
			r.blockEnd(n)
		}

	case *ast.HTMLBlock, *ast.RawHTML:
		return ast.WalkSkipChildren, nil
	}

	return ast.WalkContinue, nil
}
