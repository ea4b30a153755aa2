package publishers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// sqsPublisher sends one message per bounce. On FIFO queues the bounce id is
// both the message group and the deduplication id, so a redelivered event is
// dropped by the queue itself.
type sqsPublisher struct {
	sink
	queueURL string
	fifo     bool
	client   sqsClient
}

func newSQSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.SQS == nil {
		return nil, fmt.Errorf("sink %q missing sqs configuration", cfg.ID)
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.SQS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &sqsPublisher{
		sink:     newSink(cfg, log),
		queueURL: cfg.SQS.QueueURL,
		fifo:     isFIFO(cfg.SQS.QueueURL),
		client:   sqs.NewFromConfig(awsCfg),
	}, nil
}

func (s *sqsPublisher) Publish(ctx context.Context, evt Event) error {
	body, attrs, err := s.message(evt)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(s.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: make(map[string]types.MessageAttributeValue, len(attrs)),
	}
	for name, value := range attrs {
		input.MessageAttributes[name] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}
	if s.fifo {
		input.MessageGroupId = aws.String(evt.BounceID)
		input.MessageDeduplicationId = aws.String(evt.BounceID)
	}

	out, err := s.client.SendMessage(ctx, input)
	if err != nil {
		return s.failed(evt, fmt.Errorf("send message to sqs: %w", err))
	}
	s.delivered(evt, map[string]any{"message_id": aws.ToString(out.MessageId), "fifo": s.fifo})
	return nil
}
