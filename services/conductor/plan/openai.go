// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// OpenAIPlanner is the planning collaborator backed by a streaming chat
// completion. Each content delta is forwarded as one chunk, so the
// ingester can reconstruct partial graphs while the model is still
// writing.
//
// Thread Safety: safe for concurrent use; each Plan call owns its stream.
type OpenAIPlanner struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

// NewOpenAIPlanner creates a planner using the given client and model.
func NewOpenAIPlanner(client *openai.Client, model string, temperature float32, logger *slog.Logger) *OpenAIPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIPlanner{client: client, model: model, temperature: temperature, logger: logger}
}

// Plan implements Planner.
func (p *OpenAIPlanner) Plan(ctx context.Context, goal string) (<-chan Chunk, error) {
	if ctx == nil {
		return nil, errors.New("context must not be nil")
	}

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: plannerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Goal: " + goal},
		},
		Stream: true,
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("opening plan stream: %w", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				p.logger.Error("plan stream error", slog.String("error", err.Error()))
				select {
				case out <- Chunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case out <- Chunk{Text: resp.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

const plannerSystemPrompt = `You decompose a goal into a dependency graph of concrete subtasks.
Respond with JSON only, no prose, in this exact shape:
{"nodes":[{"id":"1","name":"short label","context":"full instructions for the executor"}],
 "edges":[{"sourceId":"1","targetId":"2"}]}
Rules:
- ids are unique strings; never use id "0" (it is reserved for the goal).
- an edge means the target depends on the source.
- the graph must be acyclic.
- emit independent subtasks first so execution can start early.`
