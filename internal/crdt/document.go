package crdt

import (
	"fmt"
	"log/slog"

	"github.com/iudanet/mathroom/internal/models"
)

// item элемент последовательности (RGA). Удаленные элементы остаются в
// последовательности как tombstone: на них могут ссылаться чужие вставки.
type item struct {
	value   models.Expression
	fields  fieldStamps
	stamp   Stamp // метка вставки, определяет порядок среди соседей
	id      ID
	deleted bool
}

// fieldStamps LWW-метки отдельных полей выражения.
type fieldStamps struct {
	typ    Stamp
	text   Stamp
	color  Stamp
	hidden Stamp
}

func newFieldStamps(s Stamp) fieldStamps {
	return fieldStamps{typ: s, text: s, color: s, hidden: s}
}

// Document реплицируемый упорядоченный список выражений (RGA + LWW-поля).
//
// Гарантии:
//   - MergeRemote идемпотентна и коммутативна: при любом порядке доставки
//     одного и того же набора Delta реплики сходятся к одинаковому Snapshot;
//   - конкурентные вставки в одно место сохраняются обе и упорядочиваются
//     по (clock, peer) по убыванию;
//   - удаление побеждает: update удаленного элемента ничего не меняет.
//
// Document не потокобезопасен: все вызовы должны идти из одной горутины
// (см. session.Session).
type Document struct {
	logger  *slog.Logger
	clock   *LamportClock
	index   map[ID]*item
	applied VersionVector
	ahead   map[string]map[uint64]struct{} // интегрированные операции за пределами непрерывного префикса
	pending map[ID][]Delta                 // операции, ожидающие свою зависимость (ключ - зависимость)
	parked  map[ID]struct{}                // ID операций из pending
	items   []*item
	log     []Delta
	seq     uint64
}

// NewDocument создает пустой документ для реплики peer.
func NewDocument(peer string, logger *slog.Logger) *Document {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Document{
		logger:  logger,
		clock:   NewLamportClockForPeer(peer),
		index:   make(map[ID]*item),
		applied: make(VersionVector),
		ahead:   make(map[string]map[uint64]struct{}),
		pending: make(map[ID][]Delta),
		parked:  make(map[ID]struct{}),
	}
}

// Peer возвращает идентификатор реплики документа.
func (d *Document) Peer() string {
	return d.clock.Peer()
}

// ApplyLocalInsert вставляет выражение на позицию index видимого списка
// и возвращает Delta для рассылки.
func (d *Document) ApplyLocalInsert(index int, expr models.Expression) (Delta, error) {
	if expr.ID == "" {
		return Delta{}, ErrInvalidExpression
	}
	if d.findLive(expr.ID) != nil {
		return Delta{}, fmt.Errorf("%w: %s", ErrDuplicateExpression, expr.ID)
	}

	live := d.liveItems()
	if index < 0 || index > len(live) {
		return Delta{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(live))
	}

	delta := d.newDelta(KindInsert)
	if index > 0 {
		delta.Origin = live[index-1].id
	}
	value := expr
	delta.Expression = &value

	d.integrate(delta)
	return delta, nil
}

// ApplyLocalUpdate изменяет поля живого выражения id и возвращает Delta.
func (d *Document) ApplyLocalUpdate(id string, patch models.Patch) (Delta, error) {
	if patch.IsEmpty() {
		return Delta{}, ErrEmptyPatch
	}

	target := d.findLive(id)
	if target == nil {
		return Delta{}, fmt.Errorf("%w: %s", ErrExpressionNotFound, id)
	}

	delta := d.newDelta(KindUpdate)
	delta.Target = target.id
	value := patch
	delta.Patch = &value

	d.integrate(delta)
	return delta, nil
}

// ApplyLocalDelete удаляет живое выражение id и возвращает Delta.
func (d *Document) ApplyLocalDelete(id string) (Delta, error) {
	target := d.findLive(id)
	if target == nil {
		return Delta{}, fmt.Errorf("%w: %s", ErrExpressionNotFound, id)
	}

	delta := d.newDelta(KindDelete)
	delta.Target = target.id

	d.integrate(delta)
	return delta, nil
}

// MergeRemote применяет удаленную Delta.
// Возвращает true, если видимое состояние могло измениться (Delta интегрирована
// вместе с, возможно, ожидавшими ее операциями). Повторная Delta - no-op.
// Delta с неизвестной зависимостью откладывается до ее прихода.
func (d *Document) MergeRemote(delta Delta) (bool, error) {
	if err := delta.Validate(); err != nil {
		return false, err
	}

	if d.seen(delta.ID) {
		return false, nil
	}

	d.clock.Witness(delta.Clock)

	if dep, ok := delta.Dependency(); ok {
		if _, known := d.index[dep]; !known {
			d.pending[dep] = append(d.pending[dep], delta)
			d.parked[delta.ID] = struct{}{}
			d.logger.Debug("Delta parked until dependency arrives",
				"delta_id", delta.ID.String(),
				"dependency", dep.String())
			return false, nil
		}
	}

	d.integrate(delta)
	return true, nil
}

// Snapshot возвращает копию видимого списка выражений.
func (d *Document) Snapshot() []models.Expression {
	result := make([]models.Expression, 0, len(d.items))
	for _, it := range d.items {
		if !it.deleted {
			result = append(result, it.value)
		}
	}
	return result
}

// Len возвращает количество видимых выражений.
func (d *Document) Len() int {
	n := 0
	for _, it := range d.items {
		if !it.deleted {
			n++
		}
	}
	return n
}

// Get возвращает живое выражение по id.
func (d *Document) Get(id string) (models.Expression, bool) {
	it := d.findLive(id)
	if it == nil {
		return models.Expression{}, false
	}
	return it.value, true
}

// StateVector возвращает вектор версий интегрированных операций.
// Отправляется новому соседу в начале синхронизации.
func (d *Document) StateVector() VersionVector {
	return d.applied.Clone()
}

// DeltasSince возвращает операции, не покрытые вектором remote,
// в порядке интеграции (зависимости идут раньше зависящих от них операций).
func (d *Document) DeltasSince(remote VersionVector) []Delta {
	result := make([]Delta, 0)
	for _, delta := range d.log {
		if !remote.Covers(delta.ID) {
			result = append(result, delta)
		}
	}
	return result
}

// Pending возвращает количество отложенных операций.
func (d *Document) Pending() int {
	return len(d.parked)
}

func (d *Document) newDelta(kind Kind) Delta {
	stamp := d.clock.Tick()
	d.seq++
	return Delta{
		Kind:  kind,
		ID:    ID{Peer: stamp.Peer, Seq: d.seq},
		Clock: stamp.Clock,
	}
}

// seen проверяет, была ли операция уже интегрирована или отложена.
func (d *Document) seen(id ID) bool {
	if d.applied.Covers(id) {
		return true
	}
	if _, ok := d.ahead[id.Peer][id.Seq]; ok {
		return true
	}
	_, ok := d.parked[id]
	return ok
}

// integrate применяет операцию, зависимость которой уже известна,
// и затем все операции, ожидавшие ее.
func (d *Document) integrate(delta Delta) {
	queue := []Delta{delta}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		d.integrateOne(next)

		if next.Kind == KindInsert {
			if waiting, ok := d.pending[next.ID]; ok {
				delete(d.pending, next.ID)
				for _, w := range waiting {
					delete(d.parked, w.ID)
				}
				queue = append(queue, waiting...)
			}
		}
	}
}

func (d *Document) integrateOne(delta Delta) {
	switch delta.Kind {
	case KindInsert:
		d.insertItem(delta)
	case KindUpdate:
		d.updateItem(delta)
	case KindDelete:
		if it := d.index[delta.Target]; it != nil {
			it.deleted = true
		}
	}

	d.markApplied(delta.ID)
	d.log = append(d.log, delta)
}

// insertItem размещает новый элемент сразу после origin, пропуская соседей
// с большей меткой (и, следовательно, все их потомки, у которых метки еще больше).
func (d *Document) insertItem(delta Delta) {
	stamp := delta.Stamp()
	it := &item{
		value:  *delta.Expression,
		fields: newFieldStamps(stamp),
		stamp:  stamp,
		id:     delta.ID,
	}

	pos := 0
	if !delta.Origin.IsZero() {
		pos = d.position(delta.Origin) + 1
	}
	for pos < len(d.items) && d.items[pos].stamp.IsNewerThan(stamp) {
		pos++
	}

	d.items = append(d.items, nil)
	copy(d.items[pos+1:], d.items[pos:])
	d.items[pos] = it
	d.index[it.id] = it
}

func (d *Document) updateItem(delta Delta) {
	it := d.index[delta.Target]
	if it == nil || it.deleted {
		// удаление побеждает конкурентное изменение
		return
	}

	stamp := delta.Stamp()
	patch := delta.Patch
	if patch.Type != nil && stamp.IsNewerThan(it.fields.typ) {
		it.value.Type = *patch.Type
		it.fields.typ = stamp
	}
	if patch.Text != nil && stamp.IsNewerThan(it.fields.text) {
		it.value.Text = *patch.Text
		it.fields.text = stamp
	}
	if patch.Color != nil && stamp.IsNewerThan(it.fields.color) {
		it.value.Color = *patch.Color
		it.fields.color = stamp
	}
	if patch.Hidden != nil && stamp.IsNewerThan(it.fields.hidden) {
		it.value.Hidden = *patch.Hidden
		it.fields.hidden = stamp
	}
}

func (d *Document) markApplied(id ID) {
	if id.Seq != d.applied[id.Peer]+1 {
		if d.ahead[id.Peer] == nil {
			d.ahead[id.Peer] = make(map[uint64]struct{})
		}
		d.ahead[id.Peer][id.Seq] = struct{}{}
		return
	}

	d.applied[id.Peer] = id.Seq
	ahead := d.ahead[id.Peer]
	for {
		next := d.applied[id.Peer] + 1
		if _, ok := ahead[next]; !ok {
			break
		}
		delete(ahead, next)
		d.applied[id.Peer] = next
	}
	if len(ahead) == 0 {
		delete(d.ahead, id.Peer)
	}
}

func (d *Document) position(id ID) int {
	for i, it := range d.items {
		if it.id == id {
			return i
		}
	}
	return -1
}

// findLive возвращает первый живой элемент с данным id выражения.
func (d *Document) findLive(exprID string) *item {
	for _, it := range d.items {
		if !it.deleted && it.value.ID == exprID {
			return it
		}
	}
	return nil
}

func (d *Document) liveItems() []*item {
	result := make([]*item, 0, len(d.items))
	for _, it := range d.items {
		if !it.deleted {
			result = append(result, it)
		}
	}
	return result
}
