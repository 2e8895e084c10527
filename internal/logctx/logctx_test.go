package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandlerAddsContextGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler{Handler: slog.NewJSONHandler(&buf, nil)})

	ctx := WithRequestData(context.Background(), &RequestData{RequestID: "r1", Method: "POST", Path: "/secure/state/1"})
	ctx = WithPlayerData(ctx, &PlayerData{PlayerID: "1", Policy: "secure"})
	ctx = WithPipelineData(ctx, &PipelineData{Stage: "bound"})

	log.With(slog.String("component", "test")).InfoContext(ctx, "pipeline.bind.fail")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if want, got := "test", rec["component"]; want != got {
		t.Fatalf("attrs added via With must keep the decoration: got %v", got)
	}
	req, _ := rec["req"].(map[string]any)
	if want, got := "r1", req["id"]; want != got {
		t.Fatalf("unexpected req.id: want %v got %v", want, got)
	}
	player, _ := rec["player"].(map[string]any)
	if want, got := "secure", player["policy"]; want != got {
		t.Fatalf("unexpected player.policy: want %v got %v", want, got)
	}
	pipeline, _ := rec["pipeline"].(map[string]any)
	if want, got := "bound", pipeline["stage"]; want != got {
		t.Fatalf("unexpected pipeline.stage: want %v got %v", want, got)
	}
}

func TestHandlerWithoutContextData(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler{Handler: slog.NewJSONHandler(&buf, nil)})
	log.InfoContext(context.Background(), "plain")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	for _, k := range []string{"req", "player", "pipeline"} {
		if _, ok := rec[k]; ok {
			t.Fatalf("unexpected group %q on a bare context", k)
		}
	}
}
