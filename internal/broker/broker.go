package broker

import (
	"encoding/json"
	"time"

	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	SubjectBetPlaced  = "rookies.bet.placed"
	SubjectBetSettled = "rookies.bet.settled"
)

// publisher is the part of *nats.Conn the broker needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// BetEvent is the payload of every bet lifecycle message.
type BetEvent struct {
	Event      string       `json:"event"`
	InstanceId string       `json:"instanceId"`
	Bet        comm.BetData `json:"bet"`
	Balance    string       `json:"balance"`
	At         time.Time    `json:"at"`
}

// Broker publishes bet lifecycle events so downstream consumers (wallet
// reconciliation, notifications) can follow the ledger. A Broker without a
// connection drops events.
type Broker struct {
	conn       publisher
	instanceId string
}

func NewBroker(conn publisher, instanceId string) *Broker {
	return &Broker{conn: conn, instanceId: instanceId}
}

func (b *Broker) BetPlaced(bet *models.Bet, user *models.User) {
	b.publish(SubjectBetPlaced, "bet_placed", bet, user)
}

func (b *Broker) BetSettled(bet *models.Bet, user *models.User) {
	b.publish(SubjectBetSettled, "bet_settled", bet, user)
}

func (b *Broker) publish(subject, event string, bet *models.Bet, user *models.User) {
	if b == nil || b.conn == nil {
		return
	}

	msg := BetEvent{
		Event:      event,
		InstanceId: b.instanceId,
		Bet:        comm.NewBetData(bet),
		At:         time.Now().UTC(),
	}
	if user != nil {
		msg.Balance = user.Balance.StringFixed(2)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error marshalling %s event: %s", event, err)
		return
	}

	if err := b.conn.Publish(subject, payload); err != nil {
		log.Errorf("Error publishing to topic %s: %s", subject, err)
		return
	}
	log.Debugf("published %s for bet %d", event, bet.ID)
}
