package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// The adapter speaks line-delimited JSON-RPC 2.0 over stdio: initialize,
// tools/list, tools/call. Tool results are human-readable text blocks; tool
// failures are reported in-band so the client keeps the session.

type tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	run         func(ctx context.Context, args map[string]any) (string, error)
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type server struct {
	name    string
	version string
	tools   []tool
	log     *zap.Logger

	mu  sync.Mutex
	out *json.Encoder
}

func newServer(name, version string, tools []tool, log *zap.Logger, out io.Writer) *server {
	return &server{
		name:    name,
		version: version,
		tools:   tools,
		log:     log,
		out:     json.NewEncoder(out),
	}
}

func (s *server) serve(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.reply(nil, nil, &rpcError{Code: -32700, Message: "parse error: " + err.Error()})
			continue
		}
		s.dispatch(ctx, req)
	}
	return sc.Err()
}

func (s *server) dispatch(ctx context.Context, req rpcRequest) {
	switch req.Method {
	case "initialize":
		s.reply(req.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		}, nil)
	case "tools/list":
		s.reply(req.ID, map[string]any{"tools": s.tools}, nil)
	case "tools/call":
		s.callTool(ctx, req)
	case "notifications/initialized":
		// Notification, no response.
	default:
		s.reply(req.ID, nil, &rpcError{Code: -32601, Message: "unknown method " + req.Method})
	}
}

func (s *server) callTool(ctx context.Context, req rpcRequest) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.reply(req.ID, nil, &rpcError{Code: -32602, Message: "bad params: " + err.Error()})
		return
	}
	for _, t := range s.tools {
		if t.Name != params.Name {
			continue
		}
		text, err := t.run(ctx, params.Arguments)
		if err != nil {
			s.log.Warn("tool failed", zap.String("tool", t.Name), zap.Error(err))
			s.reply(req.ID, map[string]any{
				"content": []map[string]any{{"type": "text", "text": "Error: " + err.Error()}},
				"isError": true,
			}, nil)
			return
		}
		s.reply(req.ID, map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		}, nil)
		return
	}
	s.reply(req.ID, nil, &rpcError{Code: -32602, Message: fmt.Sprintf("unknown tool %q", params.Name)})
}

func (s *server) reply(id json.RawMessage, result any, rpcErr *rpcError) {
	resp := map[string]any{"jsonrpc": "2.0"}
	if id != nil {
		resp["id"] = id
	} else {
		resp["id"] = nil
	}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.out.Encode(resp); err != nil {
		s.log.Error("write response", zap.Error(err))
	}
}
