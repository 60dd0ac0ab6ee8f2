package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type updateKind int

const (
	updateOnline updateKind = iota
	updateOffline
	updateRefresh
)

type update struct {
	kind    updateKind
	userIds []string
}

// Mirror copies relay registry changes into a Store. Updates are queued and
// applied on the mirror's own goroutine; when the queue is full they are
// dropped and the next heartbeat refresh repairs the state.
type Mirror struct {
	logger    *zap.Logger
	store     Store
	nodeId    string
	ttl       time.Duration
	opTimeout time.Duration

	updates  chan update
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewMirror(logger *zap.Logger, store Store, nodeId string, ttl time.Duration, queueSize int) *Mirror {
	return &Mirror{
		logger:    logger,
		store:     store,
		nodeId:    nodeId,
		ttl:       ttl,
		opTimeout: 5 * time.Second,
		updates:   make(chan update, queueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (m *Mirror) Online(userId string) {
	m.enqueue(update{kind: updateOnline, userIds: []string{userId}})
}

func (m *Mirror) Offline(userId string) {
	m.enqueue(update{kind: updateOffline, userIds: []string{userId}})
}

func (m *Mirror) Refresh(userIds []string) {
	if len(userIds) == 0 {
		return
	}

	m.enqueue(update{kind: updateRefresh, userIds: userIds})
}

// Lookup reads through to the store.
func (m *Mirror) Lookup(ctx context.Context, userId string) (string, bool, error) {
	return m.store.Lookup(ctx, userId)
}

func (m *Mirror) enqueue(u update) {
	select {
	case <-m.stop:
		return
	default:
	}

	select {
	case m.updates <- u:
	default:
		m.logger.Warn("presence update queue is full, dropping update",
			zap.Strings("userIds", u.userIds))
	}
}

func (m *Mirror) Start() {
	go m.run()
}

// Stop applies the updates already queued and waits for the worker to exit.
func (m *Mirror) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})

	<-m.done
}

func (m *Mirror) run() {
	defer close(m.done)

	for {
		select {
		case u := <-m.updates:
			m.apply(u)
		case <-m.stop:
			for {
				select {
				case u := <-m.updates:
					m.apply(u)
				default:
					return
				}
			}
		}
	}
}

func (m *Mirror) apply(u update) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opTimeout)
	defer cancel()

	var err error

	switch u.kind {
	case updateOnline:
		err = m.store.Online(ctx, u.userIds[0], m.nodeId, m.ttl)
	case updateOffline:
		err = m.store.Offline(ctx, u.userIds[0], m.nodeId)
	case updateRefresh:
		err = m.store.Refresh(ctx, u.userIds, m.nodeId, m.ttl)
	}

	if err != nil {
		m.logger.Warn("failed to apply presence update",
			zap.Strings("userIds", u.userIds),
			zap.Error(err))
	}
}
