package servicebus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
)

// NewServiceBus opens a client from a connection string when one is given,
// otherwise from the namespace with the default Azure credential chain.
func NewServiceBus(namespace, connectionString string) (*azservicebus.Client, error) {
	if connectionString != "" {
		return azservicebus.NewClientFromConnectionString(connectionString, nil)
	}
	if namespace == "" {
		return nil, errors.New("service bus namespace is not configured")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// DistributionSender writes distribution events to a Service Bus queue.
type DistributionSender struct {
	client *azservicebus.Client
	sender messageSender
	queue  string
}

func NewDistributionSender(client *azservicebus.Client, queue string) (repository.IDistributionPublisher, error) {
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Error while making new sender service bus.")
		return nil, err
	}
	return &DistributionSender{client: client, sender: sender, queue: queue}, nil
}

func (s *DistributionSender) Publish(ctx context.Context, evt model.DistributionEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	contentType := "application/json"
	subject := evt.Type
	msg := &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]any{
			"creator_id": evt.CreatorID,
			"platform":   evt.Platform,
			"status":     evt.Status,
		},
	}
	if err := s.sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("queue", s.queue).WithError(err).Error("Error while sending message.")
		return fmt.Errorf("send distribution event: %w", err)
	}
	return nil
}

func (s *DistributionSender) Close() error {
	ctx := context.Background()
	err := s.sender.Close(ctx)
	if s.client != nil {
		err = errors.Join(err, s.client.Close(ctx))
	}
	return err
}
