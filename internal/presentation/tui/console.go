package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/flow"
	"golang.org/x/term"
)

// Orchestrator is what the console drives.
type Orchestrator interface {
	Start(ctx context.Context, userID string, flow domain.Flow) flow.Reply
	Input(ctx context.Context, userID, text string) flow.Reply
	Cancel(ctx context.Context, userID string) flow.Reply
	Status(ctx context.Context, userID string) (*flow.Status, error)
	Portfolio(ctx context.Context, userID string, page int) flow.Reply
}

// SecretReader reads one line without echoing it.
type SecretReader func() (string, error)

// Console is an interactive front-end: "/command" lines start flows, other
// lines answer the pending one.
type Console struct {
	orch     Orchestrator
	userID   string
	in       *bufio.Reader
	out      io.Writer
	render   Renderer
	readHide SecretReader
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithRenderer sets the markdown renderer.
func WithRenderer(r Renderer) ConsoleOption {
	return func(c *Console) {
		c.render = r
	}
}

// WithSecretReader overrides how passkeys and private keys are read.
func WithSecretReader(r SecretReader) ConsoleOption {
	return func(c *Console) {
		c.readHide = r
	}
}

// NewConsole creates a console for userID. When in is the process stdin
// and a terminal, secrets are read without echo.
func NewConsole(orch Orchestrator, userID string, in io.Reader, out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{
		orch:   orch,
		userID: userID,
		in:     bufio.NewReader(in),
		out:    out,
		render: PlainRenderer,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.readHide = func() (string, error) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(out)
			return string(b), err
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reads commands until EOF, "/quit" or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	c.print(helpText)
	secret := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := c.readLine(secret)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		var reply flow.Reply
		switch {
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/help":
			c.print(helpText)
			continue
		case line == "/cancel":
			reply = c.orch.Cancel(ctx, c.userID)
		case line == "/status":
			c.printStatus(ctx)
			continue
		case strings.HasPrefix(line, "/portfolio "):
			page, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/portfolio ")))
			if err != nil || page < 1 {
				c.print("**Usage:** /portfolio [page]")
				continue
			}
			reply = c.orch.Portfolio(ctx, c.userID, page)
		case strings.HasPrefix(line, "/"):
			reply = c.orch.Start(ctx, c.userID, domain.Flow(strings.TrimPrefix(line, "/")))
		default:
			reply = c.orch.Input(ctx, c.userID, line)
		}

		c.print(FormatReply(reply))
		secret = c.readHide != nil && wantsSecret(reply)
	}
}

func (c *Console) readLine(secret bool) (string, error) {
	if secret {
		fmt.Fprint(c.out, "(hidden) > ")
		s, err := c.readHide()
		return strings.TrimSpace(s), err
	}
	fmt.Fprint(c.out, "> ")
	text, err := c.in.ReadString('\n')
	if err == io.EOF && text != "" {
		err = nil
	}
	return strings.TrimSpace(text), err
}

func (c *Console) printStatus(ctx context.Context) {
	st, err := c.orch.Status(ctx, c.userID)
	if err != nil {
		c.print("**Error:** " + err.Error())
		return
	}
	b, _ := json.MarshalIndent(st, "", "  ")
	c.print("```json\n" + string(b) + "\n```")
}

func (c *Console) print(md string) {
	out, err := c.render(md)
	if err != nil {
		out = md
	}
	fmt.Fprintln(c.out, strings.TrimSpace(out))
}

func wantsSecret(r flow.Reply) bool {
	return r.AwaitingPasskey || r.Step == domain.StepAwaitingPrivateKey
}

// FormatReply renders a reply as markdown.
func FormatReply(r flow.Reply) string {
	var sb strings.Builder
	if r.Error != nil {
		sb.WriteString("**")
		sb.WriteString(r.Text)
		sb.WriteString("**")
	} else {
		sb.WriteString(r.Text)
	}
	if len(r.Choices) > 0 {
		sb.WriteString("\n\n")
		for _, ch := range r.Choices {
			fmt.Fprintf(&sb, "- `%s` %s\n", ch.Value, ch.Label)
		}
	}
	return sb.String()
}

const helpText = `Commands: /buy /sell /wallet /portfolio [page] /slippage /connect /security /disconnect /privatekey

/status shows pending state, /cancel abandons it, /quit exits.`
