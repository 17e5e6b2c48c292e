package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanko-field/storefront/internal/platform/config"
	"github.com/hanko-field/storefront/internal/services"
)

// NewPubSubClient connects to Pub/Sub, or to the emulator when one is configured.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*pubsub.Client, error) {
	var opts []option.ClientOption
	if cfg.EmulatorHost != "" {
		opts = append(opts,
			option.WithEndpoint(cfg.EmulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub: create client: %w", err)
	}
	return client, nil
}

// PubSubCatalogPublisher publishes committed catalog mutations. Messages carry the seller id as
// ordering key so consumers see one seller's changes in commit order.
type PubSubCatalogPublisher struct {
	topic *pubsub.Topic
}

var _ services.CatalogEventPublisher = (*PubSubCatalogPublisher)(nil)

// NewPubSubCatalogPublisher wraps topic and enables message ordering on it.
func NewPubSubCatalogPublisher(topic *pubsub.Topic) (*PubSubCatalogPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub catalog publisher: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &PubSubCatalogPublisher{topic: topic}, nil
}

// PublishCatalogEvent blocks until the server acknowledges the message and returns its id.
func (p *PubSubCatalogPublisher) PublishCatalogEvent(ctx context.Context, event services.CatalogEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal catalog event: %w", err)
	}
	attrs := map[string]string{
		"eventId":        event.EventID,
		"type":           string(event.Type),
		"sellerId":       event.SellerID,
		"administrative": strconv.FormatBool(event.Administrative),
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: event.SellerID,
	})
	id, err := result.Get(ctx)
	if err != nil {
		// A failed publish pauses the ordering key; resume so later events are not rejected.
		p.topic.ResumePublish(event.SellerID)
		return "", fmt.Errorf("publish catalog event: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *PubSubCatalogPublisher) Stop() {
	p.topic.Stop()
}
