// Package main provides a command-line watcher for the live comment and
// presence streams, useful for eyeballing fan-out during development.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	host := flag.String("host", "localhost:8460", "API server host")
	token := flag.String("token", "", "Bearer token for the connection")
	reviewID := flag.Int("review", 0, "Review id to watch for comment changes")
	presence := flag.Bool("presence", false, "Also watch the online presence room")
	flag.Parse()

	if *token == "" {
		log.Fatal("a -token is required; streams are authenticated")
	}
	if *reviewID <= 0 && !*presence {
		log.Fatal("nothing to watch: pass -review and/or -presence")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	stop := make(chan struct{})
	var wg sync.WaitGroup

	if *reviewID > 0 {
		path := fmt.Sprintf("/ws/reviews/%d/comments", *reviewID)
		wg.Add(1)
		go watch(*host, path, *token, fmt.Sprintf("review %d", *reviewID), stop, &wg)
	}
	if *presence {
		wg.Add(1)
		go watch(*host, "/ws/presence", *token, "presence", stop, &wg)
	}

	<-interrupt
	log.Println("Interrupted, closing streams...")
	close(stop)
	wg.Wait()
}

func watch(host, path, token, label string, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	u := url.URL{Scheme: "ws", Host: host, Path: path}
	header := http.Header{"Authorization": []string{"Bearer " + token}}

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		log.Printf("[%s] dial failed (status %d): %v", label, status, err)
		return
	}
	defer func() { _ = conn.Close() }()

	log.Printf("[%s] connected to %s", label, u.String())

	frames := make(chan []byte)
	go func() {
		defer close(frames)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- raw
		}
	}()

	for {
		select {
		case raw, ok := <-frames:
			if !ok {
				log.Printf("[%s] stream closed", label)
				return
			}
			log.Printf("[%s] %s", label, raw)
		case <-stop:
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}
