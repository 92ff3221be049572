// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/logger"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/messagequeue"
)

const (
	streamName = "ASSISTANT"
	streamAge  = 24 * time.Hour

	headerRequestID  = "X-Request-ID"
	headerSessionID  = "X-Session-ID"
	headerRetryCount = "X-Retry-Count"

	// maxRetries is how many times a failed message is redelivered before it
	// goes to <subject>.dlq.
	maxRetries = 3
	dlqSuffix  = ".dlq"
)

var tracer = otel.Tracer("assistant/nats")

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url,
		nats.Name("assistant"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"assistant.>"},
		MaxAge:   streamAge,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// Publish sends data to subject with the request, session and trace headers
// taken from ctx.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	return q.publish(ctx, &nats.Msg{Subject: subject, Data: data, Header: outboundHeader(ctx)})
}

func (q *Queue) publish(ctx context.Context, msg *nats.Msg) error {
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Subscribe delivers new messages on subject to handler. A handler error
// republishes the message with a bumped retry count; after maxRetries it is
// moved to subject+".dlq".
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		hctx, span := tracer.Start(inboundContext(msg.Headers()), "nats consume "+subject,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "nats"),
				attribute.String("messaging.destination.name", msg.Subject()),
			))
		defer span.End()

		if err := handler(hctx, msg.Subject(), msg.Data()); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "handler failed")
			slog.ErrorContext(hctx, "message handler failed", "subject", msg.Subject(), "error", err)
			q.retryOrDeadLetter(hctx, msg)
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.ErrorContext(hctx, "nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// retryOrDeadLetter acks msg once a copy is republished. If republishing
// fails the message is nak'ed so JetStream redelivers it instead.
func (q *Queue) retryOrDeadLetter(ctx context.Context, msg jetstream.Msg) {
	h := nats.Header{}
	for k, vs := range msg.Headers() {
		h[k] = append([]string(nil), vs...)
	}
	n := retryCount(h) + 1
	h.Set(headerRetryCount, strconv.Itoa(n))

	out := &nats.Msg{Subject: msg.Subject(), Data: msg.Data(), Header: h}
	if n > maxRetries {
		out.Subject += dlqSuffix
		slog.WarnContext(ctx, "message dead-lettered", "subject", msg.Subject(), "retries", maxRetries)
	}

	if err := q.publish(ctx, out); err != nil {
		slog.ErrorContext(ctx, "nats requeue failed", "subject", out.Subject, "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.ErrorContext(ctx, "nats nak failed", "error", nakErr)
		}
		return
	}
	if err := msg.Ack(); err != nil {
		slog.ErrorContext(ctx, "nats ack failed", "error", err)
	}
}

// KeyValue returns the JetStream KV bucket, creating it with the given TTL
// when missing.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("nats kv %s: %w", bucket, err)
	}
	kv, err = q.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket, TTL: ttl})
	if err != nil {
		return nil, fmt.Errorf("nats kv create %s: %w", bucket, err)
	}
	return kv, nil
}

// IsConnected reports whether the underlying connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}

// Drain lets in-flight deliveries finish, then closes the connection.
func (q *Queue) Drain() error {
	if err := q.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

func retryCount(h nats.Header) int {
	n, err := strconv.Atoi(h.Get(headerRetryCount))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// outboundHeader carries request id, session id and W3C trace context.
func outboundHeader(ctx context.Context) nats.Header {
	h := nats.Header{}
	hh := http.Header(h)
	if id := logger.RequestID(ctx); id != "" {
		hh.Set(headerRequestID, id)
	}
	if id := logger.SessionID(ctx); id != "" {
		hh.Set(headerSessionID, id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(hh))
	return h
}

func inboundContext(h nats.Header) context.Context {
	hh := http.Header(h)
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(hh))
	if id := hh.Get(headerRequestID); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}
	if id := hh.Get(headerSessionID); id != "" {
		ctx = logger.WithSessionID(ctx, id)
	}
	return ctx
}
