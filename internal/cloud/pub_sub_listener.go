// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud provides components for interacting with Google Cloud services.
// This file defines a generic Pub/Sub message listener. Receiving messages is
// separated from processing them: each message is handed to a cor.Command.
//
// Logic Flow:
//  1. A PubSubListener is created with a client and a subscription ID.
//  2. A Command is attached to it.
//  3. Listen starts a goroutine that receives messages until the context ends.
//  4. Each message runs the Command in a fresh cor context traced by its own span.
//  5. The message is acknowledged only if the Command recorded no error. Failed
//     messages are left to expire and be redelivered per the subscription's
//     retry policy.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
)

// PubSubListener connects a subscription to a processing command.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
}

// NewPubSubListener creates a listener for subscriptionID. command may be nil
// and attached later with SetCommand.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	sub := pubsubClient.Subscription(subscriptionID)
	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches command unless one is already set.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen starts receiving messages in the background. Receiving stops when
// ctx is cancelled.
func (m *PubSubListener) Listen(ctx context.Context) {
	logger := slog.With("subscription", m.subscription.ID())
	logger.Info("listening")

	go func() {
		tracer := otel.Tracer("message-listener")
		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			HandleMessage(msgCtx, tracer, m.command, msg.ID, msg.Data, msg.Ack)
		})
		if err != nil {
			logger.Error("error receiving data", "error", err)
		}
	}()
}

// HandleMessage runs command for one message body and calls ack when the
// command succeeded. It reports whether the message was acknowledged.
func HandleMessage(ctx context.Context, tracer trace.Tracer, command cor.Command, id string, data []byte, ack func()) bool {
	spanCtx, span := tracer.Start(ctx, "receive-message")
	defer span.End()
	span.SetAttributes(attribute.String("msg.id", id))

	if command == nil {
		slog.ErrorContext(spanCtx, "no command attached to listener", "message", id)
		span.SetStatus(codes.Error, "no command")
		return false
	}

	chainCtx := cor.NewBaseContextWith(spanCtx)
	defer chainCtx.Close()
	chainCtx.Add(cor.CtxIn, string(data))

	command.Execute(chainCtx)

	if chainCtx.HasErrors() {
		span.SetStatus(codes.Error, "failed")
		slog.ErrorContext(spanCtx, "error executing chain", "message", id, "error", chainCtx.Err())
		return false
	}
	span.SetStatus(codes.Ok, "success")
	ack()
	return true
}
