package pool

import (
	"encoding/json"
	"fmt"

	natsutil "github.com/kthomas/go-natsutil"
	"github.com/provideplatform/datapool/common"
)

const natsPoolNotificationSubjectPrefix = "datapool.pool.notification"

// NATSDispatcher publishes committed pool events to NATS JetStream
type NATSDispatcher struct{}

// Dispatch broadcasts the event to the pool's notification subject
func (d *NATSDispatcher) Dispatch(evt *Event) error {
	subject := notificationsSubject(evt)
	if subject == nil {
		return fmt.Errorf("failed to dispatch event notification; nil subject")
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event notification for pool %s; %s", evt.Type, evt.PoolID, err.Error())
	}

	_, err = natsutil.NatsJetstreamPublish(*subject, payload)
	return err
}

// notificationsSubject returns a namespaced subject suitable for pub/sub subscriptions
func notificationsSubject(evt *Event) *string {
	if evt == nil || evt.Type == "" {
		return nil
	}
	return common.StringOrNil(fmt.Sprintf("%s.%s.%s", natsPoolNotificationSubjectPrefix, evt.PoolID.String(), evt.Type))
}
