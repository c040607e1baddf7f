// Package notify delivers the "account created" message that carries the
// verification link to the downstream mailer.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
)

// Message is published once per created account.
type Message struct {
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Email             string    `json:"email"`
	AccountCreated    time.Time `json:"accountCreated"`
	VerificationToken string    `json:"verificationToken"`
	VerificationURL   string    `json:"verificationUrl"`
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newSNSClientFromConfig = func(cfg aws.Config, optFns ...func(*sns.Options)) snsAPI {
		return sns.NewFromConfig(cfg, optFns...)
	}
)

type SNSOptions struct {
	TopicARN     string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

// SNSPublisher publishes messages as JSON to a single topic.
type SNSPublisher struct {
	client   snsAPI
	topicARN string
}

func NewSNSPublisher(ctx context.Context, opts SNSOptions) (*SNSPublisher, error) {
	if opts.TopicARN == "" {
		return nil, fmt.Errorf("sns topic arn is not configured")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newSNSClientFromConfig(cfg, func(o *sns.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
	})

	return &SNSPublisher{client: client, topicARN: opts.TopicARN}, nil
}

func (p *SNSPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// LogPublisher writes messages to the log. Used when no topic is configured.
type LogPublisher struct {
	log logging.Logger
}

func NewLogPublisher(log logging.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, msg Message) error {
	p.log.Info(ctx, "verification notification",
		"email", msg.Email,
		"verification_url", msg.VerificationURL,
	)
	return nil
}
