package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"quizlive/internal/app"
	"quizlive/internal/domain"
	"quizlive/internal/infra/auth"
)

// WSHandler upgrades client connections and bridges them onto the binder.
// The identity token is verified once at upgrade; the connection then acts
// under that identity until it closes.
type WSHandler struct {
	binder   *app.Binder
	verifier *auth.Verifier
	sendBuf  int
	upgrader websocket.Upgrader
}

func NewWSHandler(binder *app.Binder, verifier *auth.Verifier, sendBuf int) *WSHandler {
	if sendBuf <= 0 {
		sendBuf = 32
	}
	return &WSHandler{
		binder:   binder,
		verifier: verifier,
		sendBuf:  sendBuf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Code      string `json:"code"`
	QuizID    string `json:"quizId"`
	Nickname  string `json:"nickname"`
	Spectator bool   `json:"spectator"`
}

type answerPayload struct {
	Code             string   `json:"code"`
	QuestionID       string   `json:"questionId"`
	OptionID         string   `json:"optionId"`
	OptionIDs        []string `json:"optionIds"`
	TextAnswer       string   `json:"textAnswer"`
	OrderedOptionIDs []string `json:"orderedOptionIds"`
	ClientTS         int64    `json:"clientTs"`
}

type togglePayload struct {
	Code    string `json:"code"`
	Enabled bool   `json:"enabled"`
}

type transferPayload struct {
	Code                string `json:"code"`
	TargetParticipantID string `json:"targetParticipantId"`
}

type reactionPayload struct {
	Code  string `json:"code"`
	Emoji string `json:"emoji"`
}

// wsClient adapts one gorilla connection to the core's Client interface.
// Send never blocks the session: events queue onto a buffered channel and
// the oldest queued event is shed when a slow reader falls behind, so
// delivery stays ordered even when lossy.
type wsClient struct {
	id   string
	send chan domain.Event
	done chan struct{}
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Send(ev domain.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// ServeWS upgrades the request and runs the connection's read loop.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	client := &wsClient{
		id:   uuid.NewString(),
		send: make(chan domain.Event, h.sendBuf),
		done: make(chan struct{}),
	}
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case ev := <-client.send:
				if err := conn.WriteJSON(ev); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			case <-client.done:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handleMessage(r, client, identity, inbound)
	}

	h.binder.Disconnect(client.id)
	close(client.done)
	<-writerDone
}

func (h *WSHandler) handleMessage(r *http.Request, client *wsClient, identity domain.Identity, inbound inboundMessage) {
	switch inbound.Type {
	case app.CmdJoinSession:
		var payload joinPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			client.Send(badPayload(inbound.Type))
			return
		}
		h.binder.Join(r.Context(), client, identity, payload.Code, payload.QuizID, payload.Nickname, payload.Spectator)

	case app.CmdSubmitAnswer:
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			client.Send(badPayload(inbound.Type))
			return
		}
		h.binder.Dispatch(client.id, app.Command{
			Type:       app.CmdSubmitAnswer,
			QuestionID: payload.QuestionID,
			Value: domain.AnswerValue{
				OptionID:         payload.OptionID,
				OptionIDs:        payload.OptionIDs,
				TextAnswer:       payload.TextAnswer,
				OrderedOptionIDs: payload.OrderedOptionIDs,
			},
			ClientTimestamp: payload.ClientTS,
		})

	case app.CmdToggleAutoNext, app.CmdToggleSpectReact:
		var payload togglePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			client.Send(badPayload(inbound.Type))
			return
		}
		h.binder.Dispatch(client.id, app.Command{Type: inbound.Type, Enabled: payload.Enabled})

	case app.CmdTransferHost:
		var payload transferPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			client.Send(badPayload(inbound.Type))
			return
		}
		h.binder.Dispatch(client.id, app.Command{Type: inbound.Type, TargetParticipantID: payload.TargetParticipantID})

	case app.CmdReaction:
		var payload reactionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			client.Send(badPayload(inbound.Type))
			return
		}
		h.binder.Dispatch(client.id, app.Command{Type: inbound.Type, Emoji: payload.Emoji})

	case app.CmdStartQuestion, app.CmdForceReveal, app.CmdAdvanceNext:
		h.binder.Dispatch(client.id, app.Command{Type: inbound.Type})

	default:
		client.Send(domain.Event{
			Type:    inbound.Type + "_rejected",
			Payload: domain.RejectedPayload{Code: "BadRequest", Message: "unsupported message type"},
		})
	}
}

// identify resolves the connection's identity: a verified token, a guest id
// handed out on a previous connection, or a freshly minted guest.
func (h *WSHandler) identify(r *http.Request) (domain.Identity, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		return h.verifier.Verify(token)
	}
	if guestID := r.URL.Query().Get("guestId"); guestID != "" {
		return domain.Identity{ID: guestID, Guest: true}, nil
	}
	return auth.GuestIdentity(), nil
}

func badPayload(command string) domain.Event {
	return domain.Event{
		Type:    command + "_rejected",
		Payload: domain.RejectedPayload{Code: "BadRequest", Message: "invalid payload"},
	}
}
