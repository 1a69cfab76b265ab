package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/oibchat/oib/pkg/chat"
	"github.com/oibchat/oib/pkg/prompt"
	"github.com/oibchat/oib/pkg/provider"
)

// handleChat serves POST /chat. Rate limiting and validation both run before
// any model invocation, so a rejected request has no side effects.
func (s *Server) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	caller := callerAddress(c)
	allowed, err := s.limiter.Allow(c.Context(), caller)
	if err != nil {
		// A broken limiter backend degrades to admitting the request;
		// availability wins over strictness here.
		s.logger.Warn("rate limiter unavailable, admitting request", zap.Error(err))
		allowed = true
	}
	if !allowed {
		s.metrics.RateLimitedTotal.Inc()
		s.logger.Debug("rate limited", zap.String("caller", caller))
		return c.Status(fiber.StatusTooManyRequests).JSON(chat.ErrorResponse{
			Error:     "Rate limit exceeded",
			Message:   "Too many requests. Please try again later.",
			Retryable: true,
		})
	}

	var req chat.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.logger.Debug("unparseable request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(chat.ErrorResponse{
			Error:     "Invalid request",
			Message:   "request body must be valid JSON",
			Retryable: false,
		})
	}

	if issues := req.Validate(); len(issues) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(chat.ErrorResponse{
			Error:     "Invalid request",
			Message:   strings.Join(issues, ", "),
			Retryable: false,
		})
	}

	prov, err := s.resolver.Get(req.Model)
	if err != nil {
		s.logger.Error("model not available", zap.String("model", string(req.Model)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(chat.ErrorResponse{
			Error:     "Configuration error",
			Message:   "The selected model is not configured on this server.",
			Retryable: false,
		})
	}

	s.logger.Debug("received chat request",
		zap.String("caller", caller),
		zap.String("model", prov.ModelID()),
		zap.Bool("stream", req.Stream),
		zap.Int("message_len", len(req.Message)),
	)

	preq := provider.Request{
		SystemPrompt: prompt.System(req.Context),
		Message:      strings.TrimSpace(req.Message),
		Temperature:  provider.DefaultTemperature,
	}

	if req.Stream {
		return s.handleStreamingChat(c, prov, preq, startTime)
	}
	return s.handleNonStreamingChat(c, prov, preq, startTime)
}

// handleNonStreamingChat invokes the model synchronously and returns the
// completed answer.
func (s *Server) handleNonStreamingChat(c *fiber.Ctx, prov provider.Provider, preq provider.Request, startTime time.Time) error {
	res, err := prov.Generate(c.Context(), preq)
	if err != nil {
		status, body := upstreamError(err)
		s.logger.Error("model invocation failed",
			zap.String("model", prov.ModelID()),
			zap.Int("status", status),
			zap.Error(err),
		)
		s.observe(prov.ModelID(), false, status, startTime)
		return c.Status(status).JSON(body)
	}

	s.logger.Debug("model responded",
		zap.String("model", prov.ModelID()),
		zap.Int("content_len", len(res.Content)),
		zap.Duration("duration", time.Since(startTime)),
	)
	s.observe(prov.ModelID(), false, fiber.StatusOK, startTime)

	return c.JSON(chat.ChatResponse{
		Content:   res.Content,
		Reasoning: res.Reasoning,
		Model:     prov.ModelID(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStreamingChat opens a text/event-stream response and emits one frame
// per model delta, a final frame with isComplete=true, or one error frame if
// the model fails mid-stream. The stream is never left open after a failure.
func (s *Server) handleStreamingChat(c *fiber.Ctx, prov provider.Provider, preq provider.Request, startTime time.Time) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	modelID := prov.ModelID()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// The handler has returned by the time this runs, so the request
		// context is gone. Upstream cancellation is driven by write
		// failures instead: a dead client fails the flush, which cancels
		// the model call through the emit callback's error.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var reasoning strings.Builder

		writeFrame := func(chunk chat.StreamingChunk) error {
			payload, err := json.Marshal(chunk)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return err
			}
			return w.Flush()
		}

		streamErr := prov.Stream(ctx, preq, func(d provider.Delta) error {
			reasoning.WriteString(d.Reasoning)

			if d.Reasoning != "" {
				s.metrics.StreamChunksTotal.WithLabelValues(modelID, "reasoning").Inc()
			}
			if d.Content != "" {
				s.metrics.StreamChunksTotal.WithLabelValues(modelID, "content").Inc()
			}

			if err := writeFrame(chat.StreamingChunk{
				Content:   d.Content,
				Reasoning: d.Reasoning,
			}); err != nil {
				cancel()
				return err
			}
			return nil
		})

		if streamErr != nil {
			s.logger.Error("streaming failed",
				zap.String("model", modelID),
				zap.Error(streamErr),
			)
			s.observe(modelID, true, fiber.StatusInternalServerError, startTime)
			_ = writeFrame(chat.StreamingChunk{
				Error:      "Streaming failed",
				IsComplete: true,
			})
			return
		}

		final := chat.StreamingChunk{
			Reasoning:  formatReasoning(reasoning.String()),
			IsComplete: true,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		}
		if err := writeFrame(final); err != nil {
			s.logger.Warn("client gone before completion frame", zap.Error(err))
		}

		s.metrics.StreamChunksTotal.WithLabelValues(modelID, "complete").Inc()
		s.observe(modelID, true, fiber.StatusOK, startTime)
		s.logger.Debug("streaming complete",
			zap.String("model", modelID),
			zap.Duration("duration", time.Since(startTime)),
		)
	}))

	return nil
}

// upstreamError maps a model-invocation failure into the HTTP error taxonomy:
// upstream throttling becomes a retryable 429, credential failures a
// non-retryable 500, anything else a retryable 500.
func upstreamError(err error) (int, chat.ErrorResponse) {
	switch provider.Classify(err) {
	case provider.KindRateLimited:
		return fiber.StatusTooManyRequests, chat.ErrorResponse{
			Error:     "AI service rate limit",
			Message:   "AI service is currently busy. Please try again later.",
			Retryable: true,
		}
	case provider.KindAuth:
		return fiber.StatusInternalServerError, chat.ErrorResponse{
			Error:     "Authentication error",
			Message:   "AI service authentication failed.",
			Retryable: false,
		}
	default:
		return fiber.StatusInternalServerError, chat.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Something went wrong. Please try again.",
			Retryable: true,
		}
	}
}

// callerAddress derives the rate-limit key from proxy headers, first entry of
// x-forwarded-for winning, with "unknown" as the sentinel when nothing is set.
func callerAddress(c *fiber.Ctx) string {
	if fwd := c.Get("x-forwarded-for"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if ip := c.Get("x-real-ip"); ip != "" {
		return ip
	}
	if ip := c.Get("x-client-ip"); ip != "" {
		return ip
	}
	return "unknown"
}

// formatReasoning adds sentence breaks to reasoning that arrived as one
// unbroken run, so clients render it legibly.
func formatReasoning(reasoning string) string {
	if reasoning == "" || strings.Contains(reasoning, "\n") {
		return reasoning
	}
	r := strings.NewReplacer(". ", ".\n", "! ", "!\n", "? ", "?\n")
	return r.Replace(reasoning)
}

// observe records the request metrics for one handled chat call.
func (s *Server) observe(modelID string, stream bool, status int, startTime time.Time) {
	streamLabel := strconv.FormatBool(stream)
	s.metrics.RequestsTotal.WithLabelValues(modelID, streamLabel, strconv.Itoa(status)).Inc()
	s.metrics.RequestDuration.WithLabelValues(modelID, streamLabel).Observe(time.Since(startTime).Seconds())
}
