// ABOUTME: Terminal client for the assist-gateway conversation API.
// ABOUTME: Runs turns through the session state machine with streamed output.

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/sureline/assist-gateway/internal/auth"
	"github.com/sureline/assist-gateway/internal/chat"
	"github.com/sureline/assist-gateway/internal/client"
	"github.com/sureline/assist-gateway/internal/markdown"
	"github.com/sureline/assist-gateway/internal/responder"
	"github.com/sureline/assist-gateway/internal/session"
)

const greeting = "Hi, I'm Sureline Assist. Ask me anything about your coverage, " +
	"claims, premiums, or renewals."

func main() {
	server := flag.String("server", "http://localhost:8080", "Gateway server URL")
	sessionID := flag.String("session", "", "Session ID for server-side turn audit")
	local := flag.Bool("local", false, "Answer locally without a gateway")
	render := flag.Bool("render", false, "Buffer replies and render markdown at completion")
	width := flag.Int("width", 80, "Render width for markdown output")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tokens := auth.NewTokenSource()
	if err := tokens.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading token: %v\n", err)
		os.Exit(1)
	}

	var replier session.Replier
	var gw *client.Client
	if *local {
		fmt.Println("assist-tui in local mode (keyword responder, no gateway)")
		replier = localReplier(responder.New(responder.DefaultDelay))
	} else {
		opts := []client.Option{client.WithTokenSource(tokens)}
		if *sessionID != "" {
			opts = append(opts, client.WithSessionID(*sessionID))
		}
		gw = client.New(*server, opts...)
		replier = gw

		fmt.Printf("assist-tui connected to %s\n", *server)
		if token, err := tokens.Token(); err == nil && token != "" {
			fmt.Println("Auth: bearer token configured")
		} else {
			fmt.Println("Auth: none (set ASSIST_TOKEN or run assist-gateway token)")
		}
	}
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	sess := session.New(replier, session.WithGreeting(greeting))
	printAssistant(greeting, *render, *width)
	fmt.Println()

	if err := run(ctx, sess, gw, *render, *width); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, sess *session.Session, gw *client.Client, render bool, width int) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")

		input, err := readLine(ctx, scanner)
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if input == "/help" {
			printHelp()
			fmt.Println()
			continue
		}

		if input == "/questions" {
			printQuickQuestions(ctx, gw)
			fmt.Println()
			continue
		}

		runTurn(ctx, sess, input, render, width)
		fmt.Println()
	}
}

// readLine reads one line of input without blocking signal handling.
func readLine(ctx context.Context, scanner *bufio.Scanner) (string, error) {
	inputCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		if scanner.Scan() {
			inputCh <- scanner.Text()
		} else if err := scanner.Err(); err != nil {
			errCh <- err
		} else {
			errCh <- io.EOF
		}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		return "", err
	case input := <-inputCh:
		return input, nil
	}
}

// runTurn submits the input through the session and displays the reply.
// In streaming mode fragments print as they arrive; in render mode the
// reply buffers and prints as formatted markdown once the turn completes.
func runTurn(ctx context.Context, sess *session.Session, input string, render bool, width int) {
	onFragment := func(text string) {
		fmt.Print(text)
	}
	if render {
		onFragment = nil
	}

	started := time.Now()
	reply, err := sess.Submit(ctx, input, onFragment)
	if err != nil {
		if errors.Is(err, session.ErrTurnInFlight) {
			color.Yellow("[busy] a turn is already running")
			return
		}
		color.Red("[error] %v", err)
		return
	}

	if render {
		fmt.Print(markdown.Render(reply.Content, width))
	} else {
		fmt.Println()
	}
	dim := color.New(color.FgHiBlack)
	dim.Printf("(%s)\n", time.Since(started).Round(10*time.Millisecond))
}

// printAssistant shows an assistant message outside of a turn.
func printAssistant(text string, render bool, width int) {
	if render {
		fmt.Print(markdown.Render(text, width))
		return
	}
	fmt.Println(text)
}

// printQuickQuestions lists the canned prompts, from the gateway when
// connected and from the local table otherwise.
func printQuickQuestions(ctx context.Context, gw *client.Client) {
	questions := responder.QuickQuestions
	if gw != nil {
		fetched, err := gw.QuickQuestions(ctx)
		if err != nil {
			color.Red("[error] %v", err)
			return
		}
		questions = fetched
	}

	fmt.Println("Quick questions:")
	for _, q := range questions {
		fmt.Printf("  %s\n", q)
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /questions     Show quick questions to get started")
	fmt.Println("  /help          Show this help")
	fmt.Println("  /quit          Exit the client")
}

// localReplier adapts the keyword responder to the session contract for
// offline use. The reply arrives as a single fragment after the typing
// delay, matching how the demo gateway answers.
func localReplier(r *responder.Responder) session.Replier {
	return session.ReplierFunc(func(ctx context.Context, history []chat.Message, onFragment func(string)) (string, error) {
		input := ""
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].Role == chat.RoleUser {
				input = history[i].Content
				break
			}
		}

		reply, err := r.Reply(ctx, input)
		if err != nil {
			return "", err
		}
		if onFragment != nil {
			onFragment(reply)
		}
		return reply, nil
	})
}
