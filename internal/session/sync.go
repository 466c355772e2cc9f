package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/iudanet/mathroom/internal/crdt"
	"github.com/iudanet/mathroom/internal/models"
	"github.com/iudanet/mathroom/internal/transport"
	"github.com/iudanet/mathroom/internal/validation"
	"github.com/iudanet/mathroom/pkg/api"
)

// Протокол синхронизации соседей:
//  1. при появлении соединения каждая сторона отправляет sync_step1 со своим
//     вектором версий и свой presence;
//  2. получив sync_step1, сторона отвечает sync_step2 с недостающими соседу
//     операциями;
//  3. дальше изменения рассылаются сообщениями update.
//
// Все методы ниже выполняются в горутине сессии.

func (s *Session) handlePeerUp(peer string) {
	s.logger.Debug("Starting sync with peer", "remote_peer", peer)

	s.send(peer, api.TypeSyncStep1, api.SyncStep1{Vector: s.doc.StateVector()})
	s.send(peer, api.TypePresence, api.Presence{Presence: s.presence.Local()})
}

func (s *Session) handlePeerDown(peer string) {
	s.presence.Remove(peer)
}

func (s *Session) handleStatus() {
	status := s.transport.Status()
	if status == s.status {
		return
	}

	if status.State == transport.StateDisconnected {
		s.presence.Clear()
	}
	s.logger.Info("Network status changed", "status", status.String())
	s.status = status
	s.dirty = true
}

func (s *Session) handleMessage(from string, env api.Envelope) {
	var err error
	switch env.Type {
	case api.TypeSyncStep1:
		err = s.handleSyncStep1(from, env)
	case api.TypeSyncStep2, api.TypeUpdate:
		err = s.handleDeltas(from, env)
	case api.TypePresence:
		err = s.handlePresence(from, env)
	default:
		s.logger.Debug("Unknown message ignored", "remote_peer", from, "type", env.Type)
		return
	}

	if err != nil {
		s.logger.Warn("Message dropped",
			"remote_peer", from,
			"type", env.Type,
			"error", err)
	}
}

func (s *Session) handleSyncStep1(from string, env api.Envelope) error {
	var step1 api.SyncStep1
	if err := env.Decode(&step1); err != nil {
		return err
	}

	missing := s.doc.DeltasSince(crdt.VersionVector(step1.Vector))
	s.logger.Debug("Answering sync request", "remote_peer", from, "deltas", len(missing))
	s.send(from, api.TypeSyncStep2, s.encodeDeltas(missing...))
	return nil
}

func (s *Session) handleDeltas(from string, env api.Envelope) error {
	var batch api.Deltas
	if err := env.Decode(&batch); err != nil {
		return err
	}

	applied, dropped := 0, 0
	for _, raw := range batch.Deltas {
		delta, err := crdt.DecodeDelta(raw)
		if err == nil {
			var ok bool
			ok, err = s.doc.MergeRemote(delta)
			if ok {
				applied++
			}
		}
		if err != nil {
			dropped++
			s.logger.Warn("Malformed delta dropped", "remote_peer", from, "error", err)
		}
	}

	if applied > 0 {
		s.dirty = true
	}
	s.logger.Debug("Deltas merged",
		"remote_peer", from,
		"type", env.Type,
		"received", len(batch.Deltas),
		"applied", applied,
		"dropped", dropped,
		"pending", s.doc.Pending())
	return nil
}

func (s *Session) handlePresence(from string, env api.Envelope) error {
	if s.status.State == transport.StateDisconnected {
		return nil
	}

	var msg api.Presence
	if err := env.Decode(&msg); err != nil {
		return err
	}
	if err := validation.ValidateLabel(msg.Presence.Label); err != nil {
		return err
	}

	s.presence.Apply(from, msg.Presence, time.Now())
	return nil
}

func (s *Session) broadcastDeltas(deltas ...crdt.Delta) {
	s.broadcast(api.TypeUpdate, s.encodeDeltas(deltas...))
}

func (s *Session) broadcastPresence(p models.PeerPresence) {
	s.broadcast(api.TypePresence, api.Presence{Presence: p})
}

func (s *Session) encodeDeltas(deltas ...crdt.Delta) api.Deltas {
	batch := api.Deltas{Deltas: make([]json.RawMessage, 0, len(deltas))}
	for _, delta := range deltas {
		data, err := crdt.EncodeDelta(delta)
		if err != nil {
			s.logger.Error("Failed to encode delta", "delta_id", delta.ID.String(), "error", err)
			continue
		}
		batch.Deltas = append(batch.Deltas, data)
	}
	return batch
}

// broadcast рассылает сообщение всем соседям. Без сети изменения
// остаются в документе и уходят при следующей синхронизации.
func (s *Session) broadcast(typ string, payload any) {
	env, err := api.NewEnvelope(typ, s.peerID, payload)
	if err != nil {
		s.logger.Error("Failed to build envelope", "type", typ, "error", err)
		return
	}
	if err := s.transport.Broadcast(env); err != nil && !errors.Is(err, transport.ErrNotConnected) {
		s.logger.Warn("Broadcast failed", "type", typ, "error", err)
	}
}

func (s *Session) send(peer, typ string, payload any) {
	env, err := api.NewEnvelope(typ, s.peerID, payload)
	if err != nil {
		s.logger.Error("Failed to build envelope", "type", typ, "error", err)
		return
	}
	if err := s.transport.Send(peer, env); err != nil {
		s.logger.Debug("Send failed", "remote_peer", peer, "type", typ, "error", err)
	}
}
