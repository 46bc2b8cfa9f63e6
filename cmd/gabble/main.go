package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	gabble "github.com/ilhammramadhan/gabble/app"
	"github.com/ilhammramadhan/gabble/models"
	"github.com/ilhammramadhan/gabble/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	config, err := gabble.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app, err := gabble.New(config, logger)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer app.Close()

	app.SetMessageHandler(func(m models.Message) {
		author := m.UserID
		if m.Author != nil {
			author = m.Author.Username
		}
		fmt.Printf("[%s] %s: %s\n", m.RoomID, author, m.Content)
	})
	app.SetErrorHandler(func(msg string) {
		fmt.Printf("! server error: %s\n", msg)
	})
	app.SetStateHandler(func(s ws.ConnState) {
		fmt.Printf("* connection %s\n", s)
	})

	user, err := app.Login(ctx, func(url string) error {
		fmt.Printf("Open the following URL in your browser to log in:\n  %s\n", url)
		return nil
	})
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	fmt.Printf("Logged in as %s\n", user.Username)

	app.Connect()

	fmt.Println("Commands: /rooms /create <name> /join <id> /leave /who /quit. Anything else is sent to the active room.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			app.Keystroke()
			app.SendMessage(line)
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "/rooms":
			rooms, err := app.Rooms(ctx)
			if err != nil {
				fmt.Printf("! %v\n", err)
				continue
			}
			for _, room := range rooms {
				fmt.Printf("%s  %s (%d members)\n", room.ID, room.Name, room.MemberCount)
			}
		case "/create":
			room, err := app.CreateRoom(ctx, arg)
			if err != nil {
				fmt.Printf("! %v\n", err)
				continue
			}
			fmt.Printf("created %s (%s)\n", room.Name, room.ID)
		case "/join":
			if err := app.SelectRoom(ctx, arg); err != nil {
				fmt.Printf("! %v\n", err)
				continue
			}
			for _, m := range app.Messages() {
				author := m.UserID
				if m.Author != nil {
					author = m.Author.Username
				}
				fmt.Printf("[%s] %s: %s\n", m.RoomID, author, m.Content)
			}
		case "/leave":
			app.LeaveRoom()
		case "/who":
			for _, u := range app.OnlineUsers() {
				fmt.Println(u.Username)
			}
		case "/quit":
			return
		default:
			fmt.Printf("! unknown command %s\n", cmd)
		}
	}
}
