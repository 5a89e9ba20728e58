package store

// WebhookDelivery is one queued webhook attempt, fetched by the delivery
// worker when due.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string // pending, retry, delivered, failed
	Attempts       int
}
