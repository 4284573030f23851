package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	domain "github.com/machikado-app/api/internal/domain"
	"github.com/machikado-app/api/internal/services"
)

func TestPubSubPublicationPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "content-published")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubPublicationPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublicationPublisher: %v", err)
	}

	occurredAt := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	msg := services.ContentPublishedMessage{
		ContentID:  "s1",
		Kind:       domain.ContentShop,
		Name:       "喫茶スワン",
		OwnerUID:   "u1",
		OccurredAt: occurredAt,
	}

	if _, err := publisher.PublishContent(ctx, msg); err != nil {
		t.Fatalf("PublishContent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.ContentPublishedMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ContentID != msg.ContentID || payload.Kind != msg.Kind || payload.OwnerUID != msg.OwnerUID {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["contentId"]; attr != "s1" {
		t.Fatalf("expected contentId attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["kind"]; attr != "shop" {
		t.Fatalf("expected kind attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["occurredAt"]; attr != "2026-08-15T09:00:00Z" {
		t.Fatalf("expected occurredAt attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["ownerUid"]; ok {
		t.Fatalf("owner uid must stay out of attributes")
	}
}

func TestNewPubSubPublicationPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubPublicationPublisher(nil); err == nil {
		t.Fatal("nil topic must be rejected")
	}
}
