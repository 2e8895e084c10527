package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates records with whatever request, player and pipeline data
// has been attached to the context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("user_agent", rd.UserAgent),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if pd, ok := ctx.Value(playerDataKey{}).(*PlayerData); ok {
		r.AddAttrs(slog.Group("player",
			slog.String("id", pd.PlayerID),
			slog.String("policy", pd.Policy),
		))
	}

	if st, ok := ctx.Value(pipelineDataKey{}).(*PipelineData); ok {
		r.AddAttrs(slog.Group("pipeline",
			slog.String("stage", st.Stage),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	UserAgent  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type playerDataKey struct{}

type PlayerData struct {
	PlayerID string
	Policy   string
}

func WithPlayerData(ctx context.Context, data *PlayerData) context.Context {
	return context.WithValue(ctx, playerDataKey{}, data)
}

type pipelineDataKey struct{}

// PipelineData names the stage a request reached.
type PipelineData struct {
	Stage string
}

func WithPipelineData(ctx context.Context, data *PipelineData) context.Context {
	return context.WithValue(ctx, pipelineDataKey{}, data)
}
