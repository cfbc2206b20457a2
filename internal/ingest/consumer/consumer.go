package consumer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/guruji-backend/internal/ingest"
	"github.com/angelmondragon/guruji-backend/pkg/logger"
	"github.com/angelmondragon/guruji-backend/pkg/metrics"
)

const (
	objectFinalizeEvent  = "OBJECT_FINALIZE"
	payloadFormatJSONAPI = "JSON_API_V1"

	// ConsumerName scopes the idempotency keys of this consumer.
	ConsumerName = "lesson-video-ingest"
)

type handler interface {
	Handle(ctx context.Context, obj ingest.Object) (ingest.Result, error)
}

type claimer interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventKey string) (bool, error)
	Release(ctx context.Context, consumer, eventKey string) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer turns storage finalize notifications into ingest invocations.
type Consumer struct {
	handler      handler
	claims       claimer
	subscription receiver
	metrics      *metrics.IngestMetrics
	logg         *logger.Logger
}

// NewConsumer wires the orchestrator to a subscription. claims may be nil, in
// which case every delivery is processed.
func NewConsumer(h handler, claims claimer, subscription receiver, m *metrics.IngestMetrics, logg *logger.Logger) (*Consumer, error) {
	if h == nil {
		return nil, errors.New("ingest handler is required")
	}
	if subscription == nil {
		return nil, errors.New("lesson video subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		handler:      h,
		claims:       claims,
		subscription: subscription,
		metrics:      m,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	attrs := parseAttributes(msg.Attributes)
	logCtx := c.logg.WithFields(ctx, c.buildLogFields(msg.ID, attrs, nil))
	if attrs.EventType != objectFinalizeEvent {
		c.logg.Debug(logCtx, "skipping non-finalize event")
		return processResult{ack: true}
	}
	if attrs.PayloadFormat != "" && attrs.PayloadFormat != payloadFormatJSONAPI {
		c.logg.Warn(logCtx, "unsupported payload format")
		return processResult{ack: true}
	}

	payload, err := decodePayload(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}
	var gcs gcsPayload
	if err := json.Unmarshal(payload, &gcs); err != nil {
		fields := c.buildLogFields(msg.ID, attrs, nil)
		fields["payload_preview"] = previewBytes(payload, 800)
		fields["payload_len"] = len(payload)
		c.logg.Error(c.logg.WithFields(ctx, fields), "failed to unmarshal payload", err)
		return processResult{ack: true}
	}
	if gcs.Bucket == "" {
		gcs.Bucket = attrs.BucketID
	}
	if gcs.Generation == "" {
		gcs.Generation = attrs.ObjectGeneration
	}

	logCtx = c.logg.WithFields(ctx, c.buildLogFields(msg.ID, attrs, &gcs))
	if strings.TrimSpace(gcs.Name) == "" {
		c.logg.Error(logCtx, "payload missing object name", fmt.Errorf("empty name"))
		return processResult{ack: true}
	}
	if attrs.ObjectID != "" && attrs.ObjectID != gcs.Name {
		c.logg.Warn(logCtx, "attribute objectId differs from payload name")
	}

	key := eventKey(gcs)
	if c.claims != nil {
		seen, err := c.claims.CheckAndMarkProcessed(logCtx, ConsumerName, key)
		if err != nil {
			c.logg.Error(logCtx, "idempotency check failed", err)
			return processResult{nack: true}
		}
		if seen {
			c.metrics.IncDuplicate()
			c.logg.Info(logCtx, "duplicate delivery skipped")
			return processResult{ack: true}
		}
	}

	if ctx.Err() != nil {
		c.releaseClaim(logCtx, key)
		return processResult{nack: true}
	}

	res, err := c.handler.Handle(logCtx, gcs.object())
	fields := c.buildLogFields(msg.ID, attrs, &gcs)
	fields["invocation_id"] = res.InvocationID
	fields["state"] = string(res.State)
	doneCtx := c.logg.WithFields(ctx, fields)
	if err != nil {
		c.logg.Error(doneCtx, "ingest invocation failed", err)
	} else {
		c.logg.Info(doneCtx, "ingest invocation finished")
	}
	return processResult{ack: true}
}

func (c *Consumer) releaseClaim(ctx context.Context, key string) {
	if c.claims == nil {
		return
	}
	if err := c.claims.Release(context.WithoutCancel(ctx), ConsumerName, key); err != nil {
		c.logg.Error(c.logg.WithField(ctx, "event_key", key), "failed to release idempotency claim", err)
	}
}

func (c *Consumer) buildLogFields(messageID string, attrs gcsAttributes, payload *gcsPayload) map[string]any {
	fields := map[string]any{
		"message_id": messageID,
		"event_type": attrs.EventType,
		"bucket":     firstNonEmpty(attrs.BucketID, gcsBucket(payload)),
	}
	if payload != nil {
		fields["object"] = payload.Name
		fields["generation"] = payload.Generation
	}
	return fields
}

// eventKey identifies one object version; a re-upload to the same path gets a
// new generation.
func eventKey(p gcsPayload) string {
	return fmt.Sprintf("%s/%s#%s", p.Bucket, p.Name, p.Generation)
}

func gcsBucket(p *gcsPayload) string {
	if p == nil {
		return ""
	}
	return p.Bucket
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseAttributes(attrs map[string]string) gcsAttributes {
	return gcsAttributes{
		EventType:        attrs["eventType"],
		BucketID:         attrs["bucketId"],
		ObjectID:         attrs["objectId"],
		ObjectGeneration: attrs["objectGeneration"],
		PayloadFormat:    attrs["payloadFormat"],
	}
}

type gcsAttributes struct {
	EventType        string
	BucketID         string
	ObjectID         string
	ObjectGeneration string
	PayloadFormat    string
}

type gcsPayload struct {
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	Generation  string `json:"generation"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

func (p gcsPayload) object() ingest.Object {
	size, _ := strconv.ParseInt(p.Size, 10, 64)
	return ingest.Object{
		Bucket:      p.Bucket,
		Name:        p.Name,
		ContentType: p.ContentType,
		Size:        size,
		Generation:  p.Generation,
	}
}

func decodePayload(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("payload empty")
	}
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		return decoded, nil
	}
	return data, nil
}

func previewBytes(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}
