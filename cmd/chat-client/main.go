// Command chat-client is a terminal client for the chat WebSocket endpoint.
// Every stdin line is sent as a message; incoming messages are printed.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	domain "github.com/example/mood-chat/domain/chat"
	"github.com/gofiber/fiber/v2"
	ws "github.com/gorilla/websocket"
)

var (
	addr     = flag.String("addr", "localhost:3000", "Address of the chat server")
	roomID   = flag.String("room", "", "Room to join; a new room is created when empty")
	username = flag.String("user", "guest", "Username shown to other members")
)

func main() {
	flag.Parse()

	if *roomID == "" {
		room, err := createRoom(*addr)
		if err != nil {
			log.Fatalf("Create room error: %v", err)
		}
		log.Printf("Created %s (%s)", room.Name, room.ID)
		*roomID = room.ID
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{
		Scheme: "ws",
		Host:   *addr,
		Path:   fmt.Sprintf("/api/v1/chat/%s/connect/%s", *roomID, url.PathEscape(*username)),
	}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	lines := make(chan string)

	// Listen
	go func() {
		defer close(done)
		for {
			var msg domain.WireMessage
			if err := conn.ReadJSON(&msg); err != nil {
				log.Printf("Read error: %v", err)
				return
			}
			printMessage(msg)
		}
	}()

	// Read stdin
	go func() {
		input := bufio.NewScanner(os.Stdin)
		for input.Scan() {
			if text := input.Text(); text != "" {
				lines <- text
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case text := <-lines:
			if err := conn.WriteJSON(domain.WireMessage{Message: text}); err != nil {
				log.Printf("Write error: %v", err)
				return
			}
		case <-interrupt:
			// Close the connection by sending a close message, then wait
			// (with timeout) for the server to close it.
			err := conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			if err != nil {
				log.Printf("Write close error: %v", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}

func createRoom(addr string) (domain.RoomSummary, error) {
	var room domain.RoomSummary
	code, body, errs := fiber.Post("http://" + addr + "/api/v1/chat/rooms/new").
		Timeout(5 * time.Second).
		Bytes()
	if len(errs) > 0 {
		return room, errs[0]
	}
	if code != fiber.StatusCreated {
		return room, fmt.Errorf("unexpected status %d: %s", code, body)
	}
	if err := json.Unmarshal(body, &room); err != nil {
		return room, err
	}
	return room, nil
}

func printMessage(msg domain.WireMessage) {
	ts := msg.SentAt.Local().Format("15:04:05")
	if msg.MessageType == domain.WireSystemMessage {
		fmt.Printf("%s * %s\n", ts, msg.Message)
		return
	}
	fmt.Printf("%s <%s> %s\n", ts, msg.Username, msg.Message)
}
