package relay

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
)

// Executor runs an execution request to completion.
type Executor interface {
	Execute(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (*domain.ExecutionResult, error)
}

// Responder turns relay request payloads into reply payloads.
type Responder struct {
	exec   Executor
	logger *zap.Logger
}

// NewResponder creates a Responder backed by exec.
func NewResponder(exec Executor, logger *zap.Logger) *Responder {
	return &Responder{exec: exec, logger: logger}
}

// Handle decodes one request, executes it and encodes the reply.
func (r *Responder) Handle(ctx context.Context, payload []byte) []byte {
	var req domain.ExecutionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		r.logger.Error("Failed to parse relay request", zap.Error(err))
		return encode(Response{Error: "malformed request: " + err.Error()})
	}
	if !req.Language.IsValid() {
		req.Language = domain.LanguageFromFilename(req.Buffer.Filename)
	}

	result, err := r.exec.Execute(ctx, &req, nil)
	if err != nil {
		r.logger.Warn("Relay execution failed",
			zap.String("request_id", req.ID.String()),
			zap.Error(err),
		)
		return encode(Response{Error: err.Error()})
	}
	return encode(Response{Result: result})
}

func encode(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(Response{Error: err.Error()})
	}
	return data
}
