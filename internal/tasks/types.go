package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeOTPDeliver = "otp:deliver"
	TypeOTPPurge   = "otp:purge"
)

// OTPDeliverPayload carries a freshly issued code. The code is sealed with
// the shared age key so it never sits in redis in the clear.
type OTPDeliverPayload struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email"`
	SealedCode string `json:"sealed_code"`
}

func NewOTPDeliverTask(payload OTPDeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOTPDeliver, data), nil
}

// NewOTPPurgeTask has no payload; the handler works out the cutoff itself.
func NewOTPPurgeTask() *asynq.Task {
	return asynq.NewTask(TypeOTPPurge, nil)
}
