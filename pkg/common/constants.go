package common

const (
	WebhookSignatureHeader = "X-Webhook-Signature"
	WebhookTimestampHeader = "X-Webhook-Timestamp"
	BotChallengeHeader     = "X-Bot-Challenge"
)
