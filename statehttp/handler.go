// Package statehttp exposes the player state service over HTTP.
//
// Two endpoints accept the same request envelope and differ only in the
// binding policy applied to the decoded payload:
//
//	POST /vulnerable/state/{user_id}   permissive binding
//	POST /secure/state/{user_id}       strict binding
//
// Supporting routes serve account snapshots, the JSON Schema for each
// policy and a Server-Sent Events feed of security events.
package statehttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/dungeons-and-money/auth"
	"github.com/ggoodman/dungeons-and-money/events"
	"github.com/ggoodman/dungeons-and-money/internal/logctx"
	"github.com/ggoodman/dungeons-and-money/internal/pipeline"
	"github.com/ggoodman/dungeons-and-money/players"
	"github.com/ggoodman/dungeons-and-money/playerstate"
	"github.com/ggoodman/dungeons-and-money/report"
	"github.com/google/uuid"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	textMediaType         = contenttype.NewMediaType("text/plain")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	responseMediaTypes    = []contenttype.MediaType{jsonMediaType, textMediaType}
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

const (
	lastEventIDHeader     = "Last-Event-ID"
	requestIDHeader       = "X-Request-Id"
	authorizationHeader   = "Authorization"
	wwwAuthenticateHeader = "WWW-Authenticate"
)

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the base logger. Context data is attached to every record.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithAuthenticator requires a bearer token on the state and events routes.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(h *Handler) { h.auth = a }
}

// WithEvents enables GET /events backed by b.
func WithEvents(b events.Broker) Option {
	return func(h *Handler) { h.events = b }
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithRealm sets the realm advertised in bearer challenges.
func WithRealm(realm string) Option {
	return func(h *Handler) { h.realm = realm }
}

// Handler serves the state API.
type Handler struct {
	svc          *players.Service
	log          *slog.Logger
	auth         auth.Authenticator
	events       events.Broker
	maxBodyBytes int64
	realm        string
	mux          *http.ServeMux
}

// New constructs a Handler around svc.
func New(svc *players.Service, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, fmt.Errorf("players service is required")
	}

	h := &Handler{
		svc:          svc,
		log:          slog.Default(),
		maxBodyBytes: DefaultMaxBodyBytes,
		realm:        "dungeons-and-money",
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = slog.New(logctx.Handler{Handler: h.log.Handler()})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /vulnerable/state/{user_id}", h.handlePostState(playerstate.Permissive))
	mux.HandleFunc("POST /secure/state/{user_id}", h.handlePostState(playerstate.Strict))
	mux.HandleFunc("GET /state/{user_id}", h.handleGetState)
	mux.HandleFunc("GET /schema/{policy}", h.handleGetSchema)
	mux.HandleFunc("GET /events", h.handleGetEvents)
	h.mux = mux
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set(requestIDHeader, id)
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  id,
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

type stateRequest struct {
	PlayerState *string `json:"playerState"`
}

func (h *Handler) handlePostState(policy playerstate.Policy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		h.log.InfoContext(ctx, "http.post.start")

		ctype, err := contenttype.GetMediaType(r)
		if err != nil || !ctype.Matches(jsonMediaType) {
			h.writeResult(w, r, report.Error(http.StatusUnsupportedMediaType, report.KindUnsupportedMedia, "content-type must be application/json"))
			h.log.WarnContext(ctx, "content_type.unsupported")
			return
		}

		playerID, ok := h.authorizePlayer(ctx, w, r)
		if !ok {
			return
		}
		ctx = logctx.WithPlayerData(ctx, &logctx.PlayerData{PlayerID: playerID, Policy: policy.String()})

		encoded, res, ok := h.readEnvelope(ctx, w, r)
		if !ok {
			h.writeResult(w, r, res)
			return
		}

		res = h.apply(ctx, policy, playerID, encoded)
		h.writeResult(w, r, res)
		h.log.InfoContext(ctx, "http.post.done",
			slog.Int("status", res.Status),
			slog.String("kind", string(res.Kind)),
			slog.Duration("dur", time.Since(start)),
		)
	}
}

// readEnvelope decodes the request body. The envelope is closed: unknown
// members are rejected regardless of the endpoint's policy.
func (h *Handler) readEnvelope(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, report.Result, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.DisallowUnknownFields()

	var req stateRequest
	if err := dec.Decode(&req); err != nil {
		return "", h.badBody(ctx, "json.decode.fail", err), false
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", h.badBody(ctx, "json.decode.trailing", err), false
	}
	if req.PlayerState == nil {
		h.log.WarnContext(ctx, "json.decode.missing", slog.String("field", "playerState"))
		return "", report.Error(http.StatusBadRequest, report.KindBadRequest, "missing field `playerState`"), false
	}
	return *req.PlayerState, report.Result{}, true
}

// badBody maps an envelope read failure to a result. Hitting the body cap
// is a 413 wherever the decoder notices it.
func (h *Handler) badBody(ctx context.Context, event string, err error) report.Result {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.log.WarnContext(ctx, "body.too_large", slog.Int64("limit", tooLarge.Limit))
		return report.Error(http.StatusRequestEntityTooLarge, report.KindTooLarge, "request body too large")
	}
	attrs := []any{}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	h.log.WarnContext(ctx, event, attrs...)
	return report.Error(http.StatusBadRequest, report.KindBadRequest, "invalid request body")
}

// apply runs the pipeline for policy and hands a bound state to the service.
func (h *Handler) apply(ctx context.Context, policy playerstate.Policy, playerID, encoded string) report.Result {
	var (
		sum *players.Summary
		err error
	)
	switch policy {
	case playerstate.Strict:
		var st playerstate.StrictState
		if st, err = pipeline.Strict(encoded); err == nil {
			sum, err = h.svc.ApplyStrict(ctx, playerID, st)
		} else {
			h.svc.RecordRejection(ctx, playerID, policy, err)
		}
	default:
		var st playerstate.PermissiveState
		if st, err = pipeline.Permissive(encoded); err == nil {
			sum, err = h.svc.ApplyPermissive(ctx, playerID, st)
		}
	}
	if err != nil {
		stage := pipeline.Handled
		var pe *pipeline.Error
		if errors.As(err, &pe) {
			stage = pe.Stage
		}
		ctx = logctx.WithPipelineData(ctx, &logctx.PipelineData{Stage: stage.String()})
		res := report.Failure(policy, err)
		if res.Kind == report.KindInternalError {
			h.log.ErrorContext(ctx, "pipeline.fail", slog.String("err", err.Error()))
		} else {
			h.log.InfoContext(ctx, "pipeline.fail", slog.String("kind", string(res.Kind)), slog.String("err", err.Error()))
		}
		return res
	}
	return report.Success(policy, sum)
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playerID, ok := h.authorizePlayer(ctx, w, r)
	if !ok {
		return
	}
	ctx = logctx.WithPlayerData(ctx, &logctx.PlayerData{PlayerID: playerID})

	acct, err := h.svc.Account(ctx, playerID)
	if err != nil {
		if errors.Is(err, players.ErrNotFound) {
			h.writeResult(w, r, report.Error(http.StatusNotFound, report.KindNotFound, "unknown player"))
			h.log.InfoContext(ctx, "account.load.miss")
			return
		}
		h.writeResult(w, r, report.Error(http.StatusInternalServerError, report.KindInternalError, "Internal server error"))
		h.log.ErrorContext(ctx, "account.load.fail", slog.String("err", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, jsonMediaType.String(), acct)
}

func (h *Handler) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	policy, err := playerstate.ParsePolicy(r.PathValue("policy"))
	if err != nil {
		h.writeResult(w, r, report.Error(http.StatusNotFound, report.KindNotFound, "unknown policy"))
		return
	}
	writeJSON(w, http.StatusOK, "application/schema+json", playerstate.Schema(policy))
}

// handleGetEvents streams security events. With authentication enabled a
// caller only sees events about their own player.
func (h *Handler) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	if h.events == nil {
		h.writeResult(w, r, report.Error(http.StatusNotFound, report.KindNotFound, "event stream disabled"))
		return
	}
	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		w.WriteHeader(http.StatusNotAcceptable)
		h.log.WarnContext(ctx, "http.get.not_acceptable")
		return
	}

	f, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		return
	}

	var subject string
	if h.auth != nil {
		ui := h.checkAuthentication(ctx, r, w)
		if ui == nil {
			return
		}
		subject = ui.UserID()
		ctx = logctx.WithPlayerData(ctx, &logctx.PlayerData{PlayerID: subject})
	}

	wf := &lockedWriteFlusher{Writer: w, Flusher: f, ctx: ctx}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	wf.Flush()

	h.log.InfoContext(ctx, "sse.stream.start")

	err := h.events.Subscribe(ctx, r.Header.Get(lastEventIDHeader), func(cbCtx context.Context, ev events.Event) error {
		if subject != "" && ev.PlayerID != subject {
			return nil
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if err := writeSSEEvent(wf, ev.ID, string(ev.Kind), payload); err != nil {
			h.log.ErrorContext(cbCtx, "sse.write.fail", slog.String("err", err.Error()))
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		h.log.ErrorContext(ctx, "sse.subscribe.fail", slog.String("err", err.Error()))
		return
	}

	h.log.InfoContext(ctx, "sse.stream.end", slog.Duration("dur", time.Since(start)))
}

// authorizePlayer resolves {user_id} and, when authentication is enabled,
// requires the token subject to be that player. Failures are written to w.
func (h *Handler) authorizePlayer(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	playerID, err := canonicalPlayerID(r.PathValue("user_id"))
	if err != nil {
		h.writeResult(w, r, report.Error(http.StatusNotFound, report.KindNotFound, "unknown player"))
		h.log.InfoContext(ctx, "player.id.invalid", slog.String("user_id", r.PathValue("user_id")))
		return "", false
	}
	if h.auth == nil {
		return playerID, true
	}

	ui := h.checkAuthentication(ctx, r, w)
	if ui == nil {
		h.log.InfoContext(ctx, "auth.fail")
		return "", false
	}
	if ui.UserID() != playerID {
		h.writeResult(w, r, report.Error(http.StatusForbidden, report.KindForbidden, "token subject does not match player"))
		h.log.WarnContext(ctx, "auth.subject.mismatch", slog.String("sub", ui.UserID()), slog.String("user_id", playerID))
		return "", false
	}
	return playerID, true
}

// canonicalPlayerID accepts unsigned 32-bit decimal IDs.
func canonicalPlayerID(raw string) (string, error) {
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(n, 10), nil
}

func (h *Handler) checkAuthentication(ctx context.Context, r *http.Request, w http.ResponseWriter) auth.UserInfo {
	authHeader := r.Header.Get(authorizationHeader)

	if authHeader == "" {
		h.log.InfoContext(ctx, "auth.check.missing", slog.String("err", "no authorization header"))
		h.writeChallenge(w, r, auth.NewAuthenticationRequired(h.realm), "authentication required")
		return nil
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) || strings.TrimSpace(authHeader[len(bearerPrefix):]) == "" {
		h.log.InfoContext(ctx, "auth.check.invalid", slog.String("err", "malformed bearer authorization header"))
		h.writeChallenge(w, r, auth.NewInvalidAuthorizationHeader(h.realm), "invalid authorization header")
		return nil
	}
	tok := strings.TrimSpace(authHeader[len(bearerPrefix):])

	userInfo, err := h.auth.CheckAuthentication(ctx, tok)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			h.log.InfoContext(ctx, "auth.check.fail", slog.String("err", err.Error()))
			h.writeChallenge(w, r, auth.NewInvalidTokenResult(h.realm, "invalid token"), "invalid token")
			return nil
		}
		h.log.ErrorContext(ctx, "auth.check.err", slog.String("err", err.Error()))
		h.writeResult(w, r, report.Error(http.StatusInternalServerError, report.KindInternalError, "Internal server error"))
		return nil
	}
	return userInfo
}

func (h *Handler) writeChallenge(w http.ResponseWriter, r *http.Request, c *auth.AuthenticationChallenge, msg string) {
	w.Header().Add(wwwAuthenticateHeader, c.WWWAuthenticate)
	kind := report.KindUnauthorized
	if c.Status == http.StatusBadRequest {
		kind = report.KindBadRequest
	}
	h.writeResult(w, r, report.Error(c.Status, kind, msg))
}

// writeResult renders res as JSON unless the client prefers text/plain.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res report.Result) {
	mt, _, err := contenttype.GetAcceptableMediaType(r, responseMediaTypes)
	if err == nil && mt.Matches(textMediaType) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(res.Status)
		_, _ = io.WriteString(w, res.Text())
		return
	}
	writeJSON(w, res.Status, jsonMediaType.String(), res)
}

func writeJSON(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// lockedWriteFlusher wraps an io.Writer + http.Flusher with a mutex and an optional context.
// It serializes concurrent writes/flushes and avoids writing after ctx is canceled.
type lockedWriteFlusher struct {
	io.Writer
	http.Flusher
	mu  sync.Mutex
	ctx context.Context
}

func (l *lockedWriteFlusher) Write(p []byte) (int, error) {
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Writer.Write(p)
}

func (l *lockedWriteFlusher) Flush() {
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Flusher.Flush()
}

// writeSSEEvent writes one Server-Sent Event frame and flushes it.
func writeSSEEvent(wf *lockedWriteFlusher, id, event string, payload []byte) error {
	var b strings.Builder
	if id != "" {
		fmt.Fprintf(&b, "id: %s\n", id)
	}
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	b.WriteString("data: ")
	b.Write(payload)
	b.WriteString("\n\n")
	if _, err := io.WriteString(wf, b.String()); err != nil {
		return fmt.Errorf("failed to write SSE frame: %w", err)
	}
	wf.Flush()
	return nil
}
