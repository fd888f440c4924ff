package services

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/repos"
	"github.com/rationalmind/rationalmind-backend/internal/sse"
	"github.com/rationalmind/rationalmind-backend/internal/types"
	"github.com/rationalmind/rationalmind-backend/internal/utils"
)

// RelayService drives one chat turn end to end: persist the user's message,
// open the upstream stream, re-emit deltas to the client as they arrive, and
// persist the assistant's reply once the stream closes. Every exit path ends
// the client stream with exactly one terminal marker.
type RelayService interface {
	StreamTurn(ctx context.Context, writer *sse.Writer, userID, sessionID uuid.UUID, messageText string, rationalityOverride *int)
}

type relayService struct {
	log               *logger.Logger
	ai                AIClient
	assembler         AssemblerService
	embedding         EmbeddingService
	messages          repos.MessageRepo
	inactivityTimeout time.Duration
}

func NewRelayService(
	log *logger.Logger,
	ai AIClient,
	assembler AssemblerService,
	embedding EmbeddingService,
	messages repos.MessageRepo,
) RelayService {
	timeoutSec := utils.GetEnvAsInt("STREAM_INACTIVITY_TIMEOUT_SECONDS", 45, log)
	return &relayService{
		log:               log.With("service", "RelayService"),
		ai:                ai,
		assembler:         assembler,
		embedding:         embedding,
		messages:          messages,
		inactivityTimeout: time.Duration(timeoutSec) * time.Second,
	}
}

// streamDelta is the slice of an upstream chunk payload the relay cares
// about. Everything else in the event is ignored.
type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type streamChunk struct {
	data string
	err  error
}

func (s *relayService) StreamTurn(ctx context.Context, writer *sse.Writer, userID, sessionID uuid.UUID, messageText string, rationalityOverride *int) {
	defer writer.Done()

	prompt, err := s.assembler.Assemble(ctx, userID, sessionID, messageText, rationalityOverride)
	if err != nil {
		s.log.Error("Prompt assembly failed", "session_id", sessionID, "error", err)
		_ = writer.Send(sse.Frame{Error: "Failed to prepare the conversation."})
		return
	}

	// The user's turn is durable before anything upstream happens, so a
	// provider failure never loses what the user said.
	s.persistMessage(ctx, sessionID, userID, types.SenderRoleUser, messageText, prompt.QueryEmbedding)

	// The upstream read continues on a detached context so a client
	// disconnect mid-reply still drains the stream and persists the full
	// assistant message. The inactivity timer bounds the detached read.
	upstreamCtx, cancelUpstream := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelUpstream()

	body, err := s.ai.OpenChatStream(upstreamCtx, prompt.Model.Name, prompt.Messages, prompt.MaxOutputTokens)
	if err != nil {
		s.log.Error("Upstream stream open failed", "session_id", sessionID, "error", err)
		_ = writer.Send(sse.Frame{Error: "The assistant is unavailable right now."})
		return
	}
	defer body.Close()

	chunks := make(chan streamChunk)
	go func() {
		defer close(chunks)
		buf := make([]byte, 4096)
		for {
			n, readErr := body.Read(buf)
			if n > 0 {
				chunks <- streamChunk{data: string(buf[:n])}
			}
			if readErr != nil {
				if readErr != io.EOF {
					chunks <- streamChunk{err: readErr}
				}
				return
			}
		}
	}()

	var (
		reply     strings.Builder
		buffer    string
		sawDone   bool
		timer     = time.NewTimer(s.inactivityTimeout)
		timestamp = time.Now()
	)
	defer timer.Stop()

receive:
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				if !sawDone {
					s.log.Warn("Upstream closed without terminal marker", "session_id", sessionID)
				}
				break receive
			}
			if chunk.err != nil {
				s.log.Error("Upstream read failed", "session_id", sessionID, "error", chunk.err)
				_ = writer.Send(sse.Frame{Error: "The reply was interrupted."})
				break receive
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(s.inactivityTimeout)

			var lines []string
			lines, buffer = sse.Feed(buffer, chunk.data)
			for _, line := range lines {
				payload, ok := sse.DataPayload(line)
				if !ok {
					continue
				}
				if payload == sse.DoneMarker {
					sawDone = true
					break receive
				}
				var delta streamDelta
				if err := json.Unmarshal([]byte(payload), &delta); err != nil {
					s.log.Warn("Malformed upstream event, skipping", "session_id", sessionID, "error", err)
					_ = writer.Send(sse.Frame{Error: "A piece of the reply could not be read."})
					continue
				}
				if len(delta.Choices) == 0 {
					continue
				}
				text := delta.Choices[0].Delta.Content
				if text == "" {
					continue
				}
				reply.WriteString(text)
				_ = writer.Send(sse.Frame{Text: text})
			}

		case <-timer.C:
			s.log.Warn("Upstream stream idle past deadline, aborting",
				"session_id", sessionID, "timeout", s.inactivityTimeout)
			_ = writer.Send(sse.Frame{Error: "The assistant stopped responding."})
			cancelUpstream()
			break receive
		}
	}

	writer.Done()
	cancelUpstream()

	// The reader goroutine may still hold undelivered chunks; drain it so it
	// can observe the closed body and exit.
	go func() {
		for range chunks {
		}
	}()

	// Persist whatever arrived, including a partial reply cut off by a
	// timeout or read error. A fully empty reply writes nothing.
	final := reply.String()
	if strings.TrimSpace(final) == "" {
		s.log.Warn("Empty assistant reply, not persisting",
			"session_id", sessionID, "duration", time.Since(timestamp))
		return
	}
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	s.persistMessage(persistCtx, sessionID, userID, types.SenderRoleAI, final, s.embedding.Embed(persistCtx, final))
}

// persistMessage writes one turn to the log. Embedding is optional; a store
// failure is logged and swallowed because the stream must not break over it.
func (s *relayService) persistMessage(ctx context.Context, sessionID, userID uuid.UUID, role, content string, embedding []float32) {
	msg := &types.Message{
		SessionID:   sessionID,
		UserID:      userID,
		SenderRole:  role,
		ContentText: content,
	}
	if len(embedding) > 0 {
		vec := pgvector.NewVector(embedding)
		msg.ContentEmbedding = &vec
	}
	if _, err := s.messages.Create(ctx, nil, msg); err != nil {
		s.log.Error("Message persist failed", "session_id", sessionID, "sender_role", role, "error", err)
	}
}
