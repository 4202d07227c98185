package service

import (
	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/models"
	log "github.com/sirupsen/logrus"
)

// Broadcaster fans a frame out to every connection watching a stream and
// reports how many connections it reached.
type Broadcaster interface {
	Broadcast(streamID int64, msg *comm.WSMessage) int
}

// BetEvents receives ledger-affecting bet transitions after they commit.
type BetEvents interface {
	BetPlaced(bet *models.Bet, user *models.User)
	BetSettled(bet *models.Bet, user *models.User)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(int64, *comm.WSMessage) int { return 0 }

type nopEvents struct{}

func (nopEvents) BetPlaced(*models.Bet, *models.User)  {}
func (nopEvents) BetSettled(*models.Bet, *models.User) {}

func broadcast(hub Broadcaster, streamID int64, msgType string, v any) {
	msg, err := comm.NewMessage(msgType, v)
	if err != nil {
		log.Errorf("Error building %s frame: %s", msgType, err)
		return
	}
	n := hub.Broadcast(streamID, msg)
	log.Debugf("%s on stream %d reached %d connections", msgType, streamID, n)
}
