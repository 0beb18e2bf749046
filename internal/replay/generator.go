package replay

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/xpboard/internal/domain/model"
)

const (
	minContentLength = 1
	maxContentLength = 600
	botShareDivisor  = 20 // one author in twenty is a bot
)

// randomInt returns a uniform value in [0, n).
func randomInt(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}

// generateEvents builds MessagesPerUser message events for each of Users
// synthetic authors, followed by re-sends of a DuplicateRatio share of them.
func generateEvents(cfg *Config, now time.Time) []model.GatewayEvent {
	total := cfg.Users * cfg.MessagesPerUser
	events := make([]model.GatewayEvent, 0, total+int(float64(total)*cfg.DuplicateRatio))

	for u := 0; u < cfg.Users; u++ {
		authorID := uuid.NewString()
		isBot := randomInt(botShareDivisor) == 0
		for m := 0; m < cfg.MessagesPerUser; m++ {
			messageID := uuid.NewString()
			length := minContentLength + randomInt(maxContentLength-minContentLength+1)
			events = append(events, model.GatewayEvent{
				ID:   "replay:" + messageID,
				Kind: model.KindMessage,
				Message: &model.MessageEvent{
					GuildID:    cfg.GuildID,
					ChannelID:  "replay",
					MessageID:  messageID,
					AuthorID:   authorID,
					AuthorName: "replay-" + authorID[:8],
					Content:    strings.Repeat("x", int(length)),
					IsBot:      isBot,
				},
				TS: now,
			})
		}
	}

	dupes := int(float64(len(events)) * cfg.DuplicateRatio)
	for i := 0; i < dupes; i++ {
		events = append(events, events[randomInt(int64(total))])
	}
	return events
}
