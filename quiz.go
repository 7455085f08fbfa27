// Quizbox pub quiz
//
// One coordinator screen runs the game; any number of players join
// with a PIN and a display name. The coordinator advances rounds and
// questions, players submit free-form answers, and the coordinator
// grades them as the game goes. Finishing the game publishes the
// ranked standings.
//
// Features:
// - Single session per server: /path, /path/ws, /path/qr
// - Players identified by cookie (clientToken), so a refresh rejoins
//   under the same name
// - Duplicate display names prevented across clients
// - Rejections sent only to the offending client
// - Late joiners and reconnecting clients receive a full snapshot on
//   connect, and may request one at any time
// - Bursty broadcasts of the same event kind coalesce into one
// - In-browser QR button to share the join URL, backed by go-qrcode

package main

import (
	_ "embed"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const clientCookieName = "quizbox_id"

// getOrSetClientToken returns the stable identity token for this
// browser, minting one into a cookie on first contact.
func getOrSetClientToken(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(clientCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	token := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return token
}

// Client is one websocket connection: an observer for outbound
// broadcasts plus the identity token its inbound operations carry.
type Client struct {
	conn  *websocket.Conn
	obs   *Observer
	token string
}

// serveQuizWS upgrades the connection, attaches it as an observer
// (pushing a full snapshot first), and then pumps inbound operations
// into the session registry.
func serveQuizWS(cfg *Config, reg *Registry, coord *Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		token := getOrSetClientToken(w, r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:  conn,
			obs:   newObserver(),
			token: token,
		}

		coord.attach(client.obs)
		coord.direct(client.obs, reg.Snapshot())

		go client.writePump()
		client.readPump(cfg, reg, coord)
	}
}

func (c *Client) readPump(cfg *Config, reg *Registry, coord *Coordinator) {
	defer func() {
		coord.detach(c.obs)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		c.dispatch(cfg, reg, coord, msg)
	}
}

// dispatch routes one inbound operation to the registry. Rejections
// go back to this client only; state changes reach everyone through
// the coordinator.
func (c *Client) dispatch(cfg *Config, reg *Registry, coord *Coordinator, msg ClientMessage) {
	var err error

	switch msg.Type {
	case "create_or_reset":
		reg.CreateOrReset()

	case "start":
		err = reg.Start()

	case "set_question_text":
		err = reg.SetQuestionText(msg.Text)

	case "advance_question":
		err = reg.AdvanceQuestion()

	case "advance_round":
		err = reg.AdvanceRound()

	case "finish":
		err = reg.Finish()

	case "join":
		var ack JoinedMessage
		ack, err = reg.Join(c.token, msg.Name)
		if err == nil {
			coord.direct(c.obs, ack)
		}

	case "submit_answer":
		err = reg.SubmitAnswer(c.token, msg.Name, msg.Content)

	case "award_score":
		if msg.Points == nil {
			err = rejectf(RejectInvalidArgument, "award_score requires points")
		} else {
			err = reg.AwardScore(msg.Round, msg.Question, msg.Name, *msg.Points)
		}

	case "request_snapshot":
		coord.direct(c.obs, reg.Snapshot())

	default:
		// ignore unknown types
	}

	if err != nil {
		logf(cfg, "QUIZ: Rejected %q from %s: %v", msg.Type, c.token, err)
		coord.direct(c.obs, newRejectMessage(asReject(err)))
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.obs.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the quiz join URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../qr; strip the trailing "/qr" to get the join URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed quiz/index.html
var indexHTML []byte

//go:embed quiz/app.css
var quizboxCSS []byte

//go:embed quiz/app.js
var quizboxJS []byte

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_ = getOrSetClientToken(w, r)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(quizboxCSS)
	}
}

func getJsHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(quizboxJS)
	}
}

// registerQuizGame sets up routes so that:
//   - $path        → HTML client (host and player views)
//   - $path/ws     → WebSocket for the session
//   - $path/qr     → PNG QR code for the join URL
func registerQuizGame(cfg *Config, path string, mux *httprouter.Router) {
	coord := newCoordinator(cfg)
	reg := newRegistry(cfg, coord)

	// Client view (HTML)
	mux.GET(cfg.prefix+path, getIndexHandler(cfg))

	// Shared assets
	mux.GET(cfg.prefix+"/assets/quiz/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/quiz/app.js", getJsHandler(cfg))

	// Session websocket
	mux.GET(cfg.prefix+path+"/ws", serveQuizWS(cfg, reg, coord))

	// QR code for the join URL
	mux.GET(cfg.prefix+path+"/qr", qrHandler)
}
