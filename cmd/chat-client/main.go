// Command chat-client is a terminal client for the chat server.
//
// Lines typed on stdin are sent to the open conversation. Commands:
//
//	/users          list users and their presence
//	/open <email>   open the conversation with a user
//	/quit           exit
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/example/chat-app/chatclient"
	"github.com/example/chat-app/domain/user"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	server := flag.String("server", getEnv("CHAT_SERVER", "http://localhost:3000"), "chat server base URL")
	email := flag.String("email", os.Getenv("CHAT_EMAIL"), "account email")
	password := flag.String("password", os.Getenv("CHAT_PASSWORD"), "account password")
	fullName := flag.String("name", "", "full name; when set, signs up instead of logging in")
	peer := flag.String("peer", "", "email of the user to open on start")
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "Error: -email and -password are required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *server, *email, *password, *fullName, *peer); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, server, email, password, fullName, peer string) error {
	client, err := chatclient.NewHTTPClient(server)
	if err != nil {
		return err
	}

	var me *user.Profile
	if fullName != "" {
		me, err = client.Signup(ctx, email, fullName, password)
	} else {
		me, err = client.Login(ctx, email, password)
	}
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	fmt.Printf("Signed in as %s (%s)\n", me.FullName, me.Email)

	socket, err := chatclient.DialSocket(ctx, client.WebSocketURL(me.ID), client.SessionToken())
	if err != nil {
		return err
	}
	defer socket.Close()

	store := chatclient.NewStore(client, socket)
	defer store.Close()
	socket.Start()

	if err := store.LoadUsers(ctx); err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}

	var mu sync.Mutex
	printed := 0
	store.Watch(func(s chatclient.Snapshot) {
		if s.MessagesStatus != chatclient.StatusReady {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if printed > len(s.Messages) {
			printed = 0
		}
		for _, m := range s.Messages[printed:] {
			who := "them"
			if m.SenderID == me.ID {
				who = "you"
			}
			text := m.Text
			if m.Image != "" {
				text = strings.TrimSpace(text + " [image " + m.Image + "]")
			}
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, text)
		}
		printed = len(s.Messages)
	})

	open := func(target string) {
		id, ok := lookup(store.Snapshot(), target)
		if !ok {
			fmt.Printf("No user %q\n", target)
			return
		}
		mu.Lock()
		printed = 0
		mu.Unlock()
		if err := store.SelectPeer(ctx, id); err != nil {
			fmt.Printf("Failed to load conversation: %v\n", err)
		}
	}
	if peer != "" {
		open(peer)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-socket.Done():
			return fmt.Errorf("connection closed: %w", socket.Err())
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case line == "/quit":
				return nil
			case line == "/users":
				printUsers(store.Snapshot())
			case strings.HasPrefix(line, "/open "):
				open(strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
			default:
				if _, err := store.SendMessage(ctx, line, ""); err != nil {
					fmt.Printf("Send failed: %v\n", err)
				}
			}
		}
	}
}

func lookup(s chatclient.Snapshot, target string) (string, bool) {
	for _, u := range s.Users {
		if u.ID == target || strings.EqualFold(u.Email, target) {
			return u.ID, true
		}
	}
	return "", false
}

func printUsers(s chatclient.Snapshot) {
	for _, u := range s.Users {
		status := "offline"
		if s.IsOnline(u.ID) {
			status = "online"
		}
		fmt.Printf("  %-30s %-20s %s\n", u.Email, u.FullName, status)
	}
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
