package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"simflow/portal-backend/internal/settings"
)

// EmailSender is the slice of the SES v2 client the channel uses.
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// AddressResolver maps a user id to an email address.
type AddressResolver func(ctx context.Context, userID string) (string, error)

// DomainResolver addresses users as <userID>@domain.
func DomainResolver(domain string) AddressResolver {
	return func(_ context.Context, userID string) (string, error) {
		if userID == "" || strings.ContainsAny(userID, "@ ") {
			return "", fmt.Errorf("no email address for user %q", userID)
		}
		return userID + "@" + domain, nil
	}
}

// EmailChannel sends plain-text mail through SES.
type EmailChannel struct {
	client  EmailSender
	from    string
	resolve AddressResolver
}

func NewEmailChannel(client EmailSender, from string, resolve AddressResolver) *EmailChannel {
	return &EmailChannel{client: client, from: from, resolve: resolve}
}

func (c *EmailChannel) Name() string {
	return settings.ChannelEmail
}

func (c *EmailChannel) Deliver(ctx context.Context, n *Notification) error {
	to, err := c.resolve(ctx, n.UserID)
	if err != nil {
		return err
	}

	var body strings.Builder
	body.WriteString(n.Message)
	if n.Link != "" {
		body.WriteString("\n\n")
		body.WriteString(n.Link)
	}

	_, err = c.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(n.Title), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body.String()), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
