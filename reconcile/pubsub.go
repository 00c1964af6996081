package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/config"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/utils"
)

type SyncPubSubPayload struct {
	RunId  uint   `json:"runId"`
	UserId string `json:"userId"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func PublishSyncRun(ctx context.Context, runId uint, userId string) error {
	topicName := strings.TrimSpace(os.Getenv("HUBSPOT_SYNC_TOPIC"))
	if topicName == "" {
		topicName = "hubspot-sync"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if utils.EnvBoolDefault("HUBSPOT_SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := SyncPubSubPayload{RunId: runId, UserId: userId}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler accepts the push subscription's POST. It always answers
// 204: delivery retries are driven by the idempotency table, not by HTTP
// status, except when processing reports in-progress and we want redelivery.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.EnvBoolDefault("ENABLE_HUBSPOT_SYNC_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload SyncPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == 0 || payload.UserId == "" {
			c.Status(204)
			return
		}

		c.Status(pushStatusForError(ProcessSyncRun(c.Request.Context(), payload)))
	}
}

// pushStatusForError maps a processing outcome to the push response code.
// 409 asks Pub/Sub to redeliver while another worker holds the run.
func pushStatusForError(err error) int {
	if errors.Is(err, ErrIdempotencyInProgress) {
		return 409
	}
	return 204
}
