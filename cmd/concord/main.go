package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/concord-chat/concord/internal/logging"
	"github.com/concord-chat/concord/internal/tui"
	"github.com/concord-chat/concord/pkg/config"
	"github.com/concord-chat/concord/pkg/domain"
	"github.com/concord-chat/concord/pkg/gateway"
	"github.com/concord-chat/concord/pkg/session"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath, err := config.Path()
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if hs := os.Getenv("CONCORD_HOMESERVER"); hs != "" {
		cfg.Homeserver = hs
	}
	if tok := os.Getenv("CONCORD_TOKEN"); tok != "" {
		cfg.SessionToken = tok
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "version", "-v":
			fmt.Println("concord " + version)
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "login":
			return runLogin(cfg, cfgPath, false)
		case "register":
			return runLogin(cfg, cfgPath, true)
		case "logout":
			return runLogout(cfg, cfgPath)
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
			printHelp()
			return nil
		}
	}

	if !cfg.HasSession() {
		fmt.Println("Not logged in. Run: concord login")
		return nil
	}
	return runTUI(cfg, cfgPath)
}

func printHelp() {
	fmt.Println(`concord - terminal chat client

Usage:
  concord            open the chat TUI
  concord login      log in to the homeserver
  concord register   create an account and log in
  concord logout     clear the stored session
  concord version    show version

Environment:
  CONCORD_HOMESERVER  override the configured homeserver URL
  CONCORD_TOKEN       override the stored session token
  CONCORD_DEBUG       set to 1 for debug logging`)
}

// prompt reads one line of input with a label.
func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runLogin(cfg *config.Config, cfgPath string, register bool) error {
	in := bufio.NewReader(os.Stdin)
	username, err := prompt(in, "username: ")
	if err != nil {
		return err
	}
	password, err := prompt(in, "password: ")
	if err != nil {
		return err
	}
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := gateway.New(cfg.Homeserver, "")
	device := cfg.EnsureDeviceID()
	var creds *gateway.Credentials
	if register {
		creds, err = client.Register(ctx, username, password, device)
	} else {
		creds, err = client.Login(ctx, username, password, device)
	}
	if err != nil {
		if gateway.IsStatus(err, 401) {
			return fmt.Errorf("invalid credentials")
		}
		return err
	}

	cfg.UserID = string(creds.UserID)
	cfg.SessionToken = creds.Token
	if err := cfg.Save(cfgPath); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", creds.UserID)
	return nil
}

func runLogout(cfg *config.Config, cfgPath string) error {
	if !cfg.HasSession() {
		fmt.Println("Already logged out.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := gateway.New(cfg.Homeserver, cfg.SessionToken)
	client.Logout(ctx) //nolint:errcheck // best-effort server-side invalidation

	cfg.ClearSession()
	if err := cfg.Save(cfgPath); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func runTUI(cfg *config.Config, cfgPath string) error {
	logDir, err := logging.Dir()
	if err != nil {
		return err
	}
	log, closeLog, err := logging.Open(logDir, os.Getenv("CONCORD_DEBUG") == "1")
	if err != nil {
		return err
	}
	defer closeLog()

	self := domain.UserID(cfg.UserID)

	// The socket needs the session's adapter as its sink, and the session
	// needs the socket as its transport. Break the cycle with an indirection.
	var sock *gateway.Socket
	sess := session.New(log, session.TransportFunc(func(tx domain.TransactionID, cmd domain.Command) error {
		return sock.Send(tx, cmd)
	}), session.Options{
		Self:            self,
		MentionKeywords: append([]string{cfg.UserID}, cfg.MentionKeywords...),
		Notifier: session.NotifierFunc(func(title, body string) error {
			log.Info("notice", zap.String("title", title), zap.String("body", body))
			return nil
		}),
	})
	defer sess.Close()

	sock = gateway.NewSocket(log, cfg.Homeserver, cfg.SessionToken, sess.Adapter())
	go sock.Run()
	defer sock.Close()

	client := gateway.New(cfg.Homeserver, cfg.SessionToken)
	go bootstrap(log, client, sess, cfg.LastRead)

	app := tui.NewApp(sess, self)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}

	saveLastRead(log, cfg, cfgPath, sess)
	return nil
}

// bootstrap seeds the session with the room list and recent history over
// REST. History flows through the same reconcile path as live events, so
// overlap with the stream is harmless.
func bootstrap(log *zap.Logger, client *gateway.Client, sess *session.Session, lastRead map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rooms, err := client.Rooms(ctx)
	if err != nil {
		log.Warn("room list fetch failed", zap.Error(err))
		return
	}
	adapter := sess.Adapter()
	for _, room := range rooms {
		adapter.Signal(domain.RoomUpdated{Room: room.ID, Name: room.Name})
		if mark := lastRead[string(room.ID)]; mark != "" {
			sess.MarkRead(room.ID, domain.MessageID(mark))
		}
		for _, m := range room.Members {
			adapter.Signal(domain.MemberJoined{Room: room.ID, User: m.ID, Name: m.Name, At: m.JoinedAt})
		}

		frames, err := client.Messages(ctx, room.ID, time.Time{}, 50)
		if err != nil {
			log.Warn("history fetch failed", zap.String("room", string(room.ID)), zap.Error(err))
			continue
		}
		for _, frame := range frames {
			ev, err := frame.Event()
			if err != nil {
				adapter.Malformed(err)
				continue
			}
			adapter.Signal(ev)
		}
	}
	log.Info("bootstrap complete", zap.Int("rooms", len(rooms)))
}

// saveLastRead persists per-room read markers on exit.
func saveLastRead(log *zap.Logger, cfg *config.Config, cfgPath string, sess *session.Session) {
	store := sess.Store()
	marks := make(map[string]string)
	for _, id := range store.Rooms() {
		room, ok := store.Room(id)
		if ok && room.LastRead != "" {
			marks[string(id)] = string(room.LastRead)
		}
	}
	if len(marks) == 0 {
		return
	}
	cfg.LastRead = marks
	if err := cfg.Save(cfgPath); err != nil {
		log.Warn("saving read markers failed", zap.Error(err))
	}
}
