// Package session связывает документ, реестр presence, транспорт и проекцию
// одной комнаты. Все изменения состояния выполняет одна горутина сессии,
// поэтому документ не требует блокировок.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/mathroom/internal/crdt"
	"github.com/iudanet/mathroom/internal/models"
	"github.com/iudanet/mathroom/internal/presence"
	"github.com/iudanet/mathroom/internal/projection"
	"github.com/iudanet/mathroom/internal/room"
	"github.com/iudanet/mathroom/internal/transport"
	"github.com/iudanet/mathroom/internal/validation"
)

// Config параметры сессии
type Config struct {
	Label           string        // Label отображаемое имя; пусто - короткий id пользователя
	PresenceTimeout time.Duration // PresenceTimeout время без heartbeat до удаления участника
	RenewInterval   time.Duration // RenewInterval период рассылки собственного presence
}

func (c Config) withDefaults() Config {
	if c.PresenceTimeout <= 0 {
		c.PresenceTimeout = presence.DefaultTimeout
	}
	if c.RenewInterval <= 0 {
		c.RenewInterval = presence.RenewInterval
	}
	return c
}

// Session участие в одной комнате от создания до Close.
type Session struct {
	logger    *slog.Logger
	transport transport.Transport
	doc       *crdt.Document
	presence  *presence.Registry
	view      *projection.Projection
	events    *eventQueue
	ops       chan func()
	done      chan struct{}
	stopped   chan struct{}
	room      room.ID
	peerID    string
	status    transport.Status // принадлежит горутине сессии
	cfg       Config
	closeOnce sync.Once
	dirty     bool // принадлежит горутине сессии
}

// New создает сессию комнаты id поверх транспорта tr и запускает ее цикл.
// Сеть не используется до Connect.
func New(id room.ID, tr transport.Transport, cfg Config, logger *slog.Logger) (*Session, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	peerID := tr.PeerID()
	local := presence.NewLocal(peerID, cfg.Label)
	if local.Label == "" {
		local.Label = local.UserID
	}
	if err := validation.ValidateLabel(local.Label); err != nil {
		return nil, fmt.Errorf("invalid label: %w", err)
	}

	logger = logger.With("room", id.String(), "peer_id", peerID)
	s := &Session{
		logger:    logger,
		transport: tr,
		doc:       crdt.NewDocument(peerID, logger),
		presence:  presence.NewRegistry(cfg.PresenceTimeout, logger),
		view:      projection.New(),
		events:    newEventQueue(),
		ops:       make(chan func()),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		room:      id,
		peerID:    peerID,
		status:    tr.Status(),
		cfg:       cfg,
		dirty:     true,
	}

	s.presence.SetLocal(local)
	s.presence.OnPeerJoined(func(p models.PeerPresence) {
		s.logger.Info("Peer joined", "remote_peer", p.PeerID, "label", p.Label)
		s.dirty = true
	})
	s.presence.OnPeerUpdated(func(p models.PeerPresence) {
		s.logger.Debug("Peer updated", "remote_peer", p.PeerID, "label", p.Label)
		s.dirty = true
	})
	s.presence.OnPeerLeft(func(p models.PeerPresence) {
		s.logger.Info("Peer left", "remote_peer", p.PeerID, "label", p.Label)
		s.dirty = true
	})

	s.flush()
	tr.SetHandler(inbound{s: s})
	go s.run()

	return s, nil
}

// Room возвращает идентификатор комнаты.
func (s *Session) Room() room.ID {
	return s.room
}

// PeerID возвращает идентификатор участника.
func (s *Session) PeerID() string {
	return s.peerID
}

// Invite возвращает ссылку-приглашение в комнату на основе адреса страницы.
func (s *Session) Invite(location string) (string, error) {
	return room.InviteLink(location, s.room)
}

// Connect начинает поиск участников комнаты. Соединения и синхронизация
// происходят асинхронно, их ход виден через Subscribe.
func (s *Session) Connect(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.transport.Connect(ctx, s.room); err != nil {
		return fmt.Errorf("failed to connect to room %s: %w", s.room, err)
	}
	return nil
}

// Disconnect закрывает все соединения. Документ сохраняется, локальные
// изменения продолжают приниматься и уйдут соседям после Connect.
func (s *Session) Disconnect() error {
	err := s.transport.Disconnect()
	if doErr := s.do(s.handleStatus); doErr != nil {
		return doErr
	}
	if err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

// Close отключает сессию и останавливает ее цикл. Подписки закрываются.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.transport.Disconnect()
		s.transport.SetHandler(nil)
		close(s.done)
		<-s.stopped
		s.view.Close()
		s.logger.Info("Session closed")
	})
	if err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

// Insert вставляет выражение на позицию index и рассылает изменение.
func (s *Session) Insert(index int, expr models.Expression) error {
	return s.edit(func() (crdt.Delta, error) {
		return s.doc.ApplyLocalInsert(index, expr)
	})
}

// Update изменяет поля выражения id.
func (s *Session) Update(id string, patch models.Patch) error {
	return s.edit(func() (crdt.Delta, error) {
		return s.doc.ApplyLocalUpdate(id, patch)
	})
}

// Delete удаляет выражение id.
func (s *Session) Delete(id string) error {
	return s.edit(func() (crdt.Delta, error) {
		return s.doc.ApplyLocalDelete(id)
	})
}

// SetPresence заменяет собственные метаданные и сразу рассылает их.
// PeerID и Seq назначаются сессией.
func (s *Session) SetPresence(p models.PeerPresence) (models.PeerPresence, error) {
	if err := validation.ValidateLabel(p.Label); err != nil {
		return models.PeerPresence{}, fmt.Errorf("invalid label: %w", err)
	}
	p.PeerID = s.peerID

	var result models.PeerPresence
	err := s.do(func() {
		result = s.presence.SetLocal(p)
		s.broadcastPresence(result)
	})
	return result, err
}

// LocalPresence возвращает собственные метаданные.
func (s *Session) LocalPresence() models.PeerPresence {
	return s.presence.Local()
}

// Snapshot возвращает текущий список выражений.
func (s *Session) Snapshot() []models.Expression {
	return s.view.Current().Expressions
}

// Peers возвращает подключенных участников, упорядоченных по PeerID.
func (s *Session) Peers() []models.PeerPresence {
	return s.view.Current().Peers
}

// Status возвращает состояние сети на момент последней публикации.
func (s *Session) Status() transport.Status {
	return s.view.Current().Status
}

// View возвращает текущее представление целиком.
func (s *Session) View() projection.View {
	return s.view.Current()
}

// Subscribe подписывает на изменения представления. См. projection.Projection.Subscribe.
func (s *Session) Subscribe() (<-chan projection.View, func()) {
	return s.view.Subscribe()
}

func (s *Session) edit(apply func() (crdt.Delta, error)) error {
	var err error
	if doErr := s.do(func() {
		var delta crdt.Delta
		delta, err = apply()
		if err != nil {
			return
		}
		s.dirty = true
		s.broadcastDeltas(delta)
	}); doErr != nil {
		return doErr
	}
	return err
}

// do выполняет fn в горутине сессии и ждет публикации результата.
func (s *Session) do(fn func()) error {
	result := make(chan struct{})
	op := func() {
		fn()
		s.flush()
		close(result)
	}

	select {
	case s.ops <- op:
	case <-s.done:
		return ErrClosed
	}
	<-result
	return nil
}

func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.cfg.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case op := <-s.ops:
			op()
		case <-s.events.ready:
			for _, fn := range s.events.drain() {
				fn()
			}
		case now := <-ticker.C:
			s.heartbeat(now)
		}
		s.flush()
	}
}

// heartbeat удаляет молчащих участников и напоминает о себе соседям.
func (s *Session) heartbeat(now time.Time) {
	s.presence.Sweep(now)

	// Соединения с участниками могут жить и без signaling-сервера
	if s.status.State != transport.StateDisconnected && s.status.Peers > 0 {
		s.broadcastPresence(s.presence.Renew())
	}
}

// flush публикует представление, если состояние изменилось.
func (s *Session) flush() {
	if !s.dirty {
		return
	}
	s.dirty = false
	s.view.Publish(projection.View{
		Expressions: s.doc.Snapshot(),
		Peers:       s.presence.Peers(),
		Status:      s.status,
	})
}
