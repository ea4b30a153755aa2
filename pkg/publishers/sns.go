package publishers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type snsClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// snsPublisher publishes to a topic; FIFO topics are grouped per bounce like SQS.
type snsPublisher struct {
	sink
	topicARN string
	fifo     bool
	client   snsClient
}

func newSNSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.SNS == nil {
		return nil, fmt.Errorf("sink %q missing sns configuration", cfg.ID)
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.SNS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &snsPublisher{
		sink:     newSink(cfg, log),
		topicARN: cfg.SNS.TopicARN,
		fifo:     isFIFO(cfg.SNS.TopicARN),
		client:   sns.NewFromConfig(awsCfg),
	}, nil
}

func (s *snsPublisher) Publish(ctx context.Context, evt Event) error {
	body, attrs, err := s.message(evt)
	if err != nil {
		return err
	}

	input := &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Message:           aws.String(string(body)),
		MessageAttributes: make(map[string]snstypes.MessageAttributeValue, len(attrs)),
	}
	for name, value := range attrs {
		input.MessageAttributes[name] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}
	if s.fifo {
		input.MessageGroupId = aws.String(evt.BounceID)
		input.MessageDeduplicationId = aws.String(evt.BounceID)
	}

	out, err := s.client.Publish(ctx, input)
	if err != nil {
		return s.failed(evt, fmt.Errorf("publish to sns: %w", err))
	}
	s.delivered(evt, map[string]any{"message_id": aws.ToString(out.MessageId)})
	return nil
}
