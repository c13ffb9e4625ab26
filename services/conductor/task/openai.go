// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianConductor/services/conductor/graph"
)

// humanMarker is the completion prefix the executor prompt reserves for
// "I cannot finish this without a human decision".
const humanMarker = "NEEDS_HUMAN:"

// OpenAIRunner executes tasks through a streaming chat completion.
//
// Each content delta from the stream is forwarded to the sink as a token
// packet, so observers render output as it is generated. The concatenated
// stream is the task's result value.
//
// Thread Safety: safe for concurrent use.
type OpenAIRunner struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIRunner creates a runner backed by the OpenAI chat API.
func NewOpenAIRunner(client *openai.Client, model string, logger *slog.Logger) *OpenAIRunner {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIRunner{client: client, model: model, logger: logger}
}

// Run implements Runner.
func (r *OpenAIRunner) Run(ctx context.Context, node graph.Node, g *graph.Graph, prior map[string]string, emit Sink) (Outcome, error) {
	if ctx == nil {
		return Outcome{}, ErrNilContext
	}
	if node.IsRoot() {
		return Outcome{}, ErrRootNotRunnable
	}

	emit(node.ID, Packet{Kind: PacketStatus, Message: "executing: " + node.Name})

	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: executorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildExecutionPrompt(node, g, prior)},
		},
		Stream: true,
	}

	stream, err := r.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		r.logger.Error("execution stream failed to open",
			slog.String("node_id", node.ID),
			slog.String("error", err.Error()),
		)
		return Outcome{}, fmt.Errorf("opening execution stream for node %s: %w", node.ID, err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A cancelled context surfaces here as a stream error.
			return Outcome{}, fmt.Errorf("reading execution stream for node %s: %w", node.ID, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		emit(node.ID, Packet{Kind: PacketToken, Token: delta})
	}

	text := strings.TrimSpace(sb.String())
	if rest, ok := strings.CutPrefix(text, humanMarker); ok {
		return WaitingOnHuman(strings.TrimSpace(rest)), nil
	}

	r.logger.Debug("task execution complete",
		slog.String("node_id", node.ID),
		slog.Int("output_chars", len(text)),
	)
	return Done(text), nil
}

const executorSystemPrompt = "You are a task executor inside a larger plan. " +
	"Complete the single task you are given, using the results of upstream " +
	"tasks as context. Respond with the task's deliverable only. If the task " +
	"cannot be completed without a human decision, respond with a single line " +
	"starting with " + humanMarker + " followed by the question for the human."

// buildExecutionPrompt renders the node, the overall goal, and prior
// results into the user message for the execution collaborator.
func buildExecutionPrompt(node graph.Node, g *graph.Graph, prior map[string]string) string {
	var sb strings.Builder
	sb.WriteString("Overall goal: ")
	sb.WriteString(g.Root().Name)
	sb.WriteString("\n\nYour task (")
	sb.WriteString(node.Name)
	sb.WriteString("):\n")
	sb.WriteString(node.Context)

	if len(prior) > 0 {
		sb.WriteString("\n\nResults of completed upstream tasks:\n")
		// Insertion order keeps the prompt stable across runs.
		for _, n := range g.Nodes() {
			value, ok := prior[n.ID]
			if !ok {
				continue
			}
			sb.WriteString("--- ")
			sb.WriteString(n.Name)
			sb.WriteString(" ---\n")
			sb.WriteString(value)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
