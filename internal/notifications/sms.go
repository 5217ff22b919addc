package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

// SNSPublisher is the subset of the SNS client used for direct SMS
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSChannel sends a plain-text fallback through AWS SNS
type SMSChannel struct {
	client      SNSPublisher
	senderID    string
	countryCode string
	logger      *zap.Logger
}

func NewSMSChannel(client SNSPublisher, senderID string, logger *zap.Logger) *SMSChannel {
	return &SMSChannel{client: client, senderID: senderID, countryCode: DefaultCountryCode, logger: logger}
}

func (c *SMSChannel) Name() string { return "sms" }

// Message renders the SMS body for a notice
func (c *SMSChannel) Message(n Notice) string {
	name := strings.TrimSpace(n.FullName)
	if name == "" {
		name = defaultFirstName
	}

	if n.Kind == KindRejection {
		msg := fmt.Sprintf("Dear %s, your crop verification %s for %s was rejected: %s.",
			name, n.RequestID, n.CropName, ReasonTextEnglish(n.RejectionReason))
		if notes := strings.TrimSpace(n.RejectionNotes); notes != "" {
			msg += " Note: " + notes + "."
		}
		return msg + " Please resubmit with new photos."
	}
	return fmt.Sprintf("Dear %s, your crop verification %s for %s has been approved.",
		name, n.RequestID, n.CropName)
}

func (c *SMSChannel) Send(ctx context.Context, n Notice) ([]byte, error) {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if c.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(c.senderID),
		}
	}

	out, err := c.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(FormatPhoneNumber(n.Phone, c.countryCode)),
		Message:           aws.String(c.Message(n)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return nil, fmt.Errorf("sns publish failed: %w", err)
	}

	id := aws.ToString(out.MessageId)
	c.logger.Debug("SMS published", zap.String("message_id", id), zap.String("request_id", n.RequestID))
	return []byte(fmt.Sprintf(`{"message_id":%q}`, id)), nil
}
