package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"nexus-chat-cli/internal/bootstrap"
	"nexus-chat-cli/internal/client/credential"
	"nexus-chat-cli/internal/config"
	"nexus-chat-cli/internal/dto"
	"nexus-chat-cli/internal/session"
	"nexus-chat-cli/internal/tracer"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)
	defer container.Log.Sync()

	stdin := bufio.NewScanner(os.Stdin)

	// 3. Authenticate
	userId, err := ensureAuth(container, stdin)
	if err != nil {
		color.Red("Authentication failed: %v", err)
		os.Exit(1)
	}

	// 4. Open a session and run the REPL
	ctrl := container.NewSession(dto.ModeIntegrated)
	defer ctrl.Close()

	color.Cyan("Nexus session %s (mode: %s). Type /help for commands.", ctrl.SessionId(), ctrl.Mode())

	p := &printer{ctrl: ctrl}
	go p.watch()

	repl(container, ctrl, p, stdin, userId)
}

// ensureAuth reuses a stored token when it is still valid, otherwise walks
// the user through login or registration.
func ensureAuth(c *bootstrap.Container, stdin *bufio.Scanner) (uuid.UUID, error) {
	if token, ok := c.Credentials.Get(); ok {
		if claims, err := credential.Claims(token); err == nil && !claims.Expired() {
			color.Green("Logged in as %s", claims.Username)
			return claims.UserId, nil
		}
		_ = c.Credentials.Clear()
	}

	color.Yellow("No valid credential found.")
	choice := prompt(stdin, "login or register? [login] ")
	ctx := context.Background()

	if strings.HasPrefix(strings.ToLower(choice), "r") {
		username := prompt(stdin, "username: ")
		email := prompt(stdin, "email: ")
		password := prompt(stdin, "password: ")
		res, err := c.Rest.Register(ctx, &dto.RegisterRequest{Username: username, Email: email, Password: password})
		if err != nil {
			return uuid.Nil, err
		}
		color.Green("Registered as %s", res.Username)
		return res.UserId, nil
	}

	email := prompt(stdin, "email: ")
	password := prompt(stdin, "password: ")
	res, err := c.Rest.Login(ctx, &dto.LoginRequest{Email: email, Password: password})
	if err != nil {
		return uuid.Nil, err
	}
	color.Green("Welcome back, %s", res.Username)
	return res.UserId, nil
}

func repl(c *bootstrap.Container, ctrl *session.Controller, p *printer, stdin *bufio.Scanner, userId uuid.UUID) {
	ctx := context.Background()

	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			return
		}
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			if err := ctrl.SendUserMessage(ctx, line); err != nil {
				if errors.Is(err, session.ErrBusy) {
					color.Yellow("still thinking, wait for the reply")
				} else {
					color.Red("send: %v", err)
				}
			}
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/help":
			printHelp()
		case "/mode":
			if len(fields) < 2 {
				color.Yellow("current mode: %s", ctrl.Mode())
				continue
			}
			if err := ctrl.SetMode(dto.ChatMode(fields[1])); err != nil {
				color.Red("%v", err)
			} else {
				color.Cyan("mode set to %s", fields[1])
			}
		case "/stream":
			streaming := len(fields) > 1 && fields[1] == "on"
			if err := ctrl.SelectTransport(ctx, streaming); err != nil {
				color.Red("transport: %v", err)
			} else if streaming {
				color.Cyan("streaming transport selected (connection: %s)", ctrl.ConnectionState())
			} else {
				color.Cyan("request/response transport selected")
			}
		case "/disconnect":
			if err := ctrl.Disconnect(); err != nil {
				color.Red("disconnect: %v", err)
			} else {
				color.Cyan("streaming connection closed")
			}
		case "/analyze":
			if len(fields) < 2 {
				color.Yellow("usage: /analyze <text>")
				continue
			}
			res, err := c.Rest.Analyze(ctx, strings.Join(fields[1:], " "))
			if err != nil {
				color.Red("analyze: %v", err)
				continue
			}
			renderAnalysis(&res.Analysis)
		case "/beliefs":
			res, err := c.Rest.GetBeliefs(ctx, userId)
			if err != nil {
				color.Red("beliefs: %v", err)
				continue
			}
			color.Cyan("%d beliefs on record", res.Total)
			for _, b := range res.Beliefs {
				fmt.Printf("  [%.2f] %s\n", b.Confidence, b.Claim)
			}
		case "/state":
			state, err := c.Rest.GetConsciousnessState(ctx)
			if err != nil {
				// Best-effort side value; unavailability is not an event.
				color.Yellow("consciousness state unavailable")
				continue
			}
			color.Cyan("humility=%.2f volatility=%.2f awareness=%.2f depth=%.2f",
				state.EpistemicHumility, state.BeliefVolatility,
				state.ContradictionAwareness, state.DepthOfInquiry)
		case "/health":
			res, err := c.Rest.GetHealth(ctx)
			if err != nil {
				color.Red("health: %v", err)
				continue
			}
			color.Cyan("server status: %s", res.Status)
		case "/logout":
			if err := c.Rest.Logout(); err != nil {
				color.Red("logout: %v", err)
			} else {
				color.Cyan("credential cleared")
			}
		case "/quit", "/exit":
			return
		default:
			color.Yellow("unknown command %s (see /help)", fields[0])
		}
	}
}

func printHelp() {
	fmt.Println(`commands:
  /mode [conversation|analysis|integrated]  show or switch mode
  /stream on|off                            select streaming or request transport
  /disconnect                               close the streaming connection
  /analyze <text>                           one-off analysis outside the timeline
  /beliefs                                  list extracted beliefs
  /state                                    show consciousness metrics
  /health                                   server health
  /logout                                   clear stored credential
  /quit                                     exit`)
}

func prompt(stdin *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !stdin.Scan() {
		return ""
	}
	return strings.TrimSpace(stdin.Text())
}

// printer renders timeline entries as they are appended, whichever transport
// produced them.
type printer struct {
	ctrl *session.Controller

	mu      sync.Mutex
	printed int
}

func (p *printer) watch() {
	for range p.ctrl.Updates() {
		p.flush()
	}
}

func (p *printer) flush() {
	timeline := p.ctrl.Timeline()

	p.mu.Lock()
	defer p.mu.Unlock()
	for ; p.printed < len(timeline); p.printed++ {
		m := timeline[p.printed]
		if m.Role != session.RoleAssistant {
			continue
		}
		color.Green("\nnexus [%s]: %s", m.Mode, m.Content)
		if m.Analysis != nil {
			renderAnalysis(m.Analysis)
		}
		for _, contradiction := range m.Contradictions {
			color.Red("contradiction (severity %.2f): %s", contradiction.Severity, contradiction.Explanation)
		}
	}
}

func renderAnalysis(a *dto.AnalysisResult) {
	color.Cyan("analysis %s", a.Id)
	fmt.Printf("  syntactic: %d voice, %d complexity, %d nominalisations, %d transitivity\n",
		len(a.Syntactic.VoiceAnalysis), len(a.Syntactic.SentenceComplexity),
		len(a.Syntactic.Nominalisations), len(a.Syntactic.Transitivity))
	fmt.Printf("  semantic: %d presuppositions, %d implicatures, %d hierarchies, %d lexical fields\n",
		len(a.Semantic.Presuppositions), len(a.Semantic.Implicatures),
		len(a.Semantic.PowerHierarchies), len(a.Semantic.LexicalFields))
	fmt.Printf("  discourse: %d framings, %d omissions, %d collocations, %d intertextual\n",
		len(a.Discourse.Framing), len(a.Discourse.StrategicOmissions),
		len(a.Discourse.Collocations), len(a.Discourse.Intertextuality))
	fmt.Printf("  synthesis: %d naturalised claims, %d beneficiaries, %d hidden contexts, %d reframings\n",
		len(a.CriticalSynthesis.NaturalisedClaims), len(a.CriticalSynthesis.BeneficiaryAnalysis),
		len(a.CriticalSynthesis.HiddenContexts), len(a.CriticalSynthesis.AlternativeFramings))

	for _, p := range a.Semantic.Presuppositions {
		fmt.Printf("  presupposes: %s (trigger: %s)\n", p.PresupposedContent, p.Trigger)
	}
	for _, claim := range a.CriticalSynthesis.NaturalisedClaims {
		fmt.Printf("  naturalised: %s\n", claim.Claim)
	}
}
