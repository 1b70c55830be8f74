package wecom

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dkravets/keychat/internal/common"
	"github.com/dkravets/keychat/internal/logging"
)

// Engine turns a decrypted inbound message into a reply. An empty reply
// means no passive response is sent.
type Engine interface {
	HandleText(ctx context.Context, userID, text string) (string, error)
	HandleEvent(ctx context.Context, userID, eventKey string) (string, error)
}

// Handler is the transport adapter: it authenticates and decrypts inbound
// callbacks, hands the plaintext to the engine, and encrypts and signs the
// reply. Request handling is stateless per call.
type Handler struct {
	token  string
	cipher *Cipher
	engine Engine
	log    logging.Logger
	now    func() time.Time
}

func NewHandler(token string, cipher *Cipher, engine Engine, logger logging.Logger) *Handler {
	return &Handler{
		token:  token,
		cipher: cipher,
		engine: engine,
		log:    logger,
		now:    time.Now,
	}
}

// Register mounts the callback endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/wecom/callback", h.VerifyURL)
	r.Post("/wecom/callback", h.Callback)
}

// VerifyURL answers the platform's URL-verification handshake: echostr is
// itself an encrypted envelope whose plaintext must be echoed verbatim.
func (h *Handler) VerifyURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	echostr := q.Get("echostr")

	if !VerifySignature(h.token, q.Get("timestamp"), q.Get("nonce"), q.Get("msg_signature"), echostr) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	plaintext, err := h.cipher.Decrypt(echostr)
	if err != nil {
		h.log.Warn(r.Context(), "echostr decrypt failed", "error", err)
		http.Error(w, "invalid echostr", http.StatusForbidden)
		return
	}

	_, _ = io.WriteString(w, plaintext)
}

// Callback handles a message POST. Authentication failures (signature,
// envelope, corp id) are the only cases allowed to return a rejecting
// status; once the message is authenticated, any downstream failure still
// answers a generic "success" so the platform does not retry-storm us.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var envelope callbackEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !VerifySignature(h.token, q.Get("timestamp"), q.Get("nonce"), q.Get("msg_signature"), envelope.Encrypt) {
		h.log.Warn(ctx, "callback signature mismatch", "error", common.ErrSignature)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	plaintext, err := h.cipher.Decrypt(envelope.Encrypt)
	if err != nil {
		// Treated identically to a signature failure; no detail leaks out.
		h.log.Warn(ctx, "callback envelope rejected", "error", err)
		http.Error(w, "invalid message", http.StatusForbidden)
		return
	}

	var msg Message
	if err := xml.Unmarshal([]byte(plaintext), &msg); err != nil {
		h.log.Error(ctx, "inner xml unmarshal failed", "error", err)
		h.ack(w)
		return
	}

	reply, err := h.dispatch(ctx, &msg)
	if err != nil {
		h.log.Error(ctx, "message processing failed", "user", msg.FromUserName, "error", err)
		h.ack(w)
		return
	}
	if reply == "" {
		h.ack(w)
		return
	}

	response, err := h.buildEncryptedReply(&msg, reply)
	if err != nil {
		h.log.Error(ctx, "reply encryption failed", "error", err)
		h.ack(w)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(response)
}

func (h *Handler) dispatch(ctx context.Context, msg *Message) (string, error) {
	switch msg.MsgType {
	case MsgTypeText:
		if msg.Content == "" {
			return "", nil
		}
		return h.engine.HandleText(ctx, msg.FromUserName, msg.Content)
	case MsgTypeEvent:
		if msg.Event != EventClick {
			return "", nil
		}
		return h.engine.HandleEvent(ctx, msg.FromUserName, msg.EventKey)
	default:
		return "", nil
	}
}

func (h *Handler) buildEncryptedReply(msg *Message, reply string) ([]byte, error) {
	now := h.now().Unix()

	// Passive replies swap the from/to of the inbound message.
	inner, err := buildReplyXML(msg.FromUserName, msg.ToUserName, now, reply)
	if err != nil {
		return nil, err
	}

	encrypted, err := h.cipher.Encrypt(string(inner))
	if err != nil {
		return nil, err
	}

	nonce, err := Nonce()
	if err != nil {
		return nil, err
	}
	timestamp := now

	return xml.Marshal(encryptedReply{
		Encrypt:      cdata{encrypted},
		MsgSignature: cdata{Signature(h.token, strconv.FormatInt(timestamp, 10), nonce, encrypted)},
		TimeStamp:    timestamp,
		Nonce:        cdata{nonce},
	})
}

func (h *Handler) ack(w http.ResponseWriter) {
	_, _ = io.WriteString(w, "success")
}
