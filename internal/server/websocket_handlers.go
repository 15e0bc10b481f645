package server

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"tableside/internal/feed"
	"tableside/internal/models"
	"tableside/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// wsFrame is the envelope for every message sent to a websocket client.
type wsFrame struct {
	Type      string                `json:"type"`
	Comment   *models.Comment       `json:"comment,omitempty"`
	CommentID uint                  `json:"comment_id,omitempty"`
	Like      *models.CommentLike   `json:"like,omitempty"`
	Entry     *models.ActivityEntry `json:"entry,omitempty"`
	Members   []feed.Member         `json:"members,omitempty"`
}

// outbound serializes writes to one websocket connection. Subscription
// callbacks fire on dispatch goroutines, and the connection only tolerates a
// single writer, so frames are funneled through a buffered channel. A full
// buffer drops the frame; clients that fall behind re-sync on reconnect.
type outbound struct {
	frames chan []byte
}

func newOutbound() *outbound {
	return &outbound{frames: make(chan []byte, 32)}
}

func (o *outbound) send(f wsFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		log.Printf("WebSocket: marshal frame: %v", err)
		return
	}
	select {
	case o.frames <- data:
	default:
		log.Printf("WebSocket: slow consumer, dropping %s frame", f.Type)
	}
}

// writePump drains frames onto the connection until the channel or the
// connection dies.
func (o *outbound) writePump(conn *websocket.Conn, done <-chan struct{}) {
	for {
		select {
		case data := <-o.frames:
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// CommentStreamHandler streams live comment and like changes for one review.
// The client receives comment_inserted, comment_updated, comment_deleted,
// like_added and like_removed frames until it disconnects.
func (s *Server) CommentStreamHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		reviewID, ok := wsParamID(conn, "reviewID")
		if !ok {
			return
		}

		ctx := context.Background()
		out := newOutbound()
		done := make(chan struct{})

		commentSub := s.registry.SubscribeToComments(ctx, reviewID, func(ev realtime.CommentEvent) {
			switch e := ev.(type) {
			case realtime.CommentInserted:
				out.send(wsFrame{Type: "comment_inserted", Comment: &e.Comment})
			case realtime.CommentUpdated:
				out.send(wsFrame{Type: "comment_updated", Comment: &e.Comment})
			case realtime.CommentDeleted:
				out.send(wsFrame{Type: "comment_deleted", CommentID: e.CommentID})
			}
		})
		defer commentSub.Unsubscribe()

		likeSub := s.registry.Subscribe(ctx, realtime.TableCommentLikes, realtime.ReviewFilter(reviewID), realtime.Handlers{
			OnInsert: func(ev feed.Event) {
				like, err := realtime.DecodeLikeEvent(ev)
				if err != nil {
					return
				}
				if added, isAdd := like.(realtime.LikeAdded); isAdd {
					out.send(wsFrame{Type: "like_added", Like: &added.Like})
				}
			},
			OnDelete: func(ev feed.Event) {
				like, err := realtime.DecodeLikeEvent(ev)
				if err != nil {
					return
				}
				if removed, isDel := like.(realtime.LikeRemoved); isDel {
					out.send(wsFrame{Type: "like_removed", CommentID: removed.CommentID})
				}
			},
		})
		defer likeSub.Unsubscribe()

		go out.writePump(conn, done)
		defer close(done)

		// Read loop: the client sends nothing meaningful on this stream, but
		// reading is how the close handshake is observed.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// presenceCommand is the inbound message shape on the presence stream.
type presenceCommand struct {
	Type   string `json:"type"`
	Page   string `json:"page"`
	Status string `json:"status"`
}

// PresenceStreamHandler keeps the connected user present for the lifetime of
// the socket and streams online-room snapshots. Inbound set_page and
// set_status commands update the user's visible state.
func (s *Server) PresenceStreamHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			return
		}
		userID := userIDVal.(uint)

		ctx := context.Background()
		out := newOutbound()
		done := make(chan struct{})

		session := s.tracker.Start(ctx, userID, conn.Query("page"))
		defer session.Stop(ctx)

		sub := s.registry.SubscribeToPresence(ctx, func(members []feed.Member) {
			out.send(wsFrame{Type: "presence_sync", Members: members})
		})
		defer sub.Unsubscribe()

		go out.writePump(conn, done)
		defer close(done)

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd presenceCommand
			if err := json.Unmarshal(raw, &cmd); err != nil {
				continue
			}
			switch cmd.Type {
			case "set_page":
				session.SetPage(ctx, cmd.Page)
			case "set_status":
				session.SetStatus(ctx, models.PresenceStatus(cmd.Status))
			}
		}
	})
}

// wsParamID reads a positive uint route parameter on an upgraded connection.
func wsParamID(conn *websocket.Conn, param string) (uint, bool) {
	id, err := strconv.Atoi(conn.Params(param))
	if err != nil || id <= 0 {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid id"}`))
		return 0, false
	}
	return uint(id), true
}
