package mqtt

import (
	"context"
	"fmt"

	"github.com/absmach/fedmodel/pkg/artifact"
)

const modelTopicTemplate = "m/%s/c/%s/fl/models/global"

// ModelTopic is where new global model versions are announced.
func ModelTopic(domainID, channelID string) string {
	return fmt.Sprintf(modelTopicTemplate, domainID, channelID)
}

// Notifier announces published manifests as retained messages, so a client
// that subscribes later still learns the current version.
type Notifier struct {
	pubsub PubSub
	topic  string
}

func NewNotifier(ps PubSub, domainID, channelID string) *Notifier {
	return &Notifier{
		pubsub: ps,
		topic:  ModelTopic(domainID, channelID),
	}
}

func (n *Notifier) Notify(ctx context.Context, m artifact.Manifest) error {
	return n.pubsub.Publish(ctx, n.topic, m, true)
}
