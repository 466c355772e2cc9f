// Package console реализует интерактивный участник комнаты для терминала:
// команды редактирования списка выражений и просмотра участников.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/mathroom/internal/models"
	"github.com/iudanet/mathroom/internal/presence"
	"github.com/iudanet/mathroom/internal/projection"
	"github.com/iudanet/mathroom/internal/room"
	"github.com/iudanet/mathroom/internal/transport"
)

// Room операции комнаты, доступные консоли (реализует session.Session)
type Room interface {
	Insert(index int, expr models.Expression) error
	Update(id string, patch models.Patch) error
	Delete(id string) error
	Snapshot() []models.Expression
	Peers() []models.PeerPresence
	Status() transport.Status
	LocalPresence() models.PeerPresence
	SetPresence(p models.PeerPresence) (models.PeerPresence, error)
	Invite(location string) (string, error)
	Room() room.ID
}

// errQuit команда завершения
var errQuit = errors.New("quit")

const prompt = "> "

type command struct {
	run   func(c *Console, args []string) error
	usage string
	help  string
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"list":   {run: (*Console).runList, usage: "list", help: "show expressions"},
		"add":    {run: (*Console).runAdd, usage: "add <text>", help: "append an expression"},
		"insert": {run: (*Console).runInsert, usage: "insert <pos> <text>", help: "insert an expression at position (1-based)"},
		"set":    {run: (*Console).runSet, usage: "set <ref> <text>", help: "change expression text"},
		"color":  {run: (*Console).runColor, usage: "color <ref> <color>", help: "change expression color"},
		"hide":   {run: (*Console).runHide, usage: "hide <ref>", help: "hide expression graph"},
		"show":   {run: (*Console).runShow, usage: "show <ref>", help: "show expression graph"},
		"delete": {run: (*Console).runDelete, usage: "delete <ref>", help: "delete an expression"},
		"who":    {run: (*Console).runWho, usage: "who", help: "list peers in the room"},
		"name":   {run: (*Console).runName, usage: "name <label>", help: "change your display name"},
		"paint":  {run: (*Console).runPaint, usage: "paint <0-39>", help: "change your cursor color group"},
		"invite": {run: (*Console).runInvite, usage: "invite", help: "print invite link"},
		"status": {run: (*Console).runStatus, usage: "status", help: "show room and network status"},
		"help":   {run: (*Console).runHelp, usage: "help", help: "show this help"},
		"quit":   {run: func(*Console, []string) error { return errQuit }, usage: "quit", help: "leave the room"},
	}
}

var order = []string{"list", "add", "insert", "set", "color", "hide", "show", "delete", "who", "name", "paint", "invite", "status", "help", "quit"}

// Console интерактивная консоль комнаты
type Console struct {
	io         IO
	room       Room
	inviteBase string
}

// New создает консоль. inviteBase - адрес страницы для ссылок-приглашений.
func New(io IO, r Room, inviteBase string) *Console {
	return &Console{io: io, room: r, inviteBase: inviteBase}
}

// Run читает и выполняет команды до quit, конца ввода или отмены ctx.
// Ошибки команд выводятся и не прерывают работу.
func (c *Console) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := c.io.ReadInput(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}

		if err := c.Execute(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			c.io.Printf("Error: %v\n", err)
		}
	}
}

// Execute выполняет одну строку команды.
func (c *Console) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	name := strings.ToLower(fields[0])
	switch name {
	case "ls":
		name = "list"
	case "rm":
		name = "delete"
	case "exit":
		name = "quit"
	}

	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help'", fields[0])
	}
	return cmd.run(c, restOf(line, fields))
}

// restOf возвращает аргументы команды: первый аргумент-ссылку отдельно,
// а текст выражения целиком, вместе с пробелами.
func restOf(line string, fields []string) []string {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	if rest == "" {
		return nil
	}
	return []string{rest}
}

func (c *Console) runList(_ []string) error {
	exprs := c.room.Snapshot()
	if len(exprs) == 0 {
		c.io.Println("No expressions yet. Use 'add <text>' to create one.")
		return nil
	}

	for i, e := range exprs {
		flags := ""
		if e.Hidden {
			flags = " [hidden]"
		}
		if e.Color != "" {
			flags += " (" + e.Color + ")"
		}
		c.io.Printf("%3d. %-8s %s%s\n", i+1, e.ID, e.Text, flags)
	}
	return nil
}

func (c *Console) runAdd(args []string) error {
	if len(args) == 0 {
		return usageError("add")
	}
	return c.insert(len(c.room.Snapshot()), args[0])
}

func (c *Console) runInsert(args []string) error {
	pos, text, ok := splitRef(args)
	if !ok {
		return usageError("insert")
	}
	n, err := strconv.Atoi(pos)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid position %q", pos)
	}
	return c.insert(n-1, text)
}

func (c *Console) insert(index int, text string) error {
	expr := models.Expression{
		ID:   newExpressionID(),
		Type: models.ExpressionTypeMath,
		Text: text,
	}
	if err := c.room.Insert(index, expr); err != nil {
		return err
	}
	c.io.Printf("Added %s\n", expr.ID)
	return nil
}

func (c *Console) runSet(args []string) error {
	ref, text, ok := splitRef(args)
	if !ok {
		return usageError("set")
	}
	return c.update(ref, models.TextPatch(text))
}

func (c *Console) runColor(args []string) error {
	ref, color, ok := splitRef(args)
	if !ok {
		return usageError("color")
	}
	return c.update(ref, models.Patch{Color: &color})
}

func (c *Console) runHide(args []string) error {
	if len(args) == 0 {
		return usageError("hide")
	}
	hidden := true
	return c.update(args[0], models.Patch{Hidden: &hidden})
}

func (c *Console) runShow(args []string) error {
	if len(args) == 0 {
		return usageError("show")
	}
	hidden := false
	return c.update(args[0], models.Patch{Hidden: &hidden})
}

func (c *Console) update(ref string, patch models.Patch) error {
	id, err := c.resolve(ref)
	if err != nil {
		return err
	}
	return c.room.Update(id, patch)
}

func (c *Console) runDelete(args []string) error {
	if len(args) == 0 {
		return usageError("delete")
	}
	id, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	if err := c.room.Delete(id); err != nil {
		return err
	}
	c.io.Printf("Deleted %s\n", id)
	return nil
}

func (c *Console) runWho(_ []string) error {
	local := c.room.LocalPresence()
	c.io.Printf("* %-20s %s (you)\n", local.Label, local.Color)

	for _, p := range c.room.Peers() {
		c.io.Printf("  %-20s %s\n", p.Label, p.Color)
	}
	return nil
}

func (c *Console) runName(args []string) error {
	if len(args) == 0 {
		return usageError("name")
	}
	p := c.room.LocalPresence()
	p.Label = args[0]
	if _, err := c.room.SetPresence(p); err != nil {
		return err
	}
	c.io.Printf("You are now %s\n", args[0])
	return nil
}

func (c *Console) runPaint(args []string) error {
	if len(args) == 0 {
		return usageError("paint")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n >= presence.ColorGroups {
		return fmt.Errorf("color group must be 0..%d", presence.ColorGroups-1)
	}
	p := c.room.LocalPresence()
	p.Color, p.Light = presence.ColorGroup(n)
	_, err = c.room.SetPresence(p)
	return err
}

func (c *Console) runInvite(_ []string) error {
	link, err := c.room.Invite(c.inviteBase)
	if err != nil {
		return fmt.Errorf("failed to build invite link: %w", err)
	}
	c.io.Println(link)
	return nil
}

func (c *Console) runStatus(_ []string) error {
	c.io.Printf("Room:        %s\n", c.room.Room())
	c.io.Printf("Network:     %s\n", c.room.Status())
	c.io.Printf("Expressions: %d\n", len(c.room.Snapshot()))
	c.io.Printf("Peers:       %d\n", len(c.room.Peers()))
	return nil
}

func (c *Console) runHelp(_ []string) error {
	c.io.Println("Commands (<ref> is a list position or an expression id):")
	for _, name := range order {
		cmd := commands[name]
		c.io.Printf("  %-22s %s\n", cmd.usage, cmd.help)
	}
	return nil
}

// resolve превращает ссылку (номер в списке или id) в id выражения.
func (c *Console) resolve(ref string) (string, error) {
	exprs := c.room.Snapshot()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(exprs) {
			return "", fmt.Errorf("no expression at position %d", n)
		}
		return exprs[n-1].ID, nil
	}
	return ref, nil
}

// splitRef делит аргументы на первое слово и остаток строки.
func splitRef(args []string) (ref, rest string, ok bool) {
	if len(args) == 0 {
		return "", "", false
	}
	ref, rest, found := strings.Cut(args[0], " ")
	rest = strings.TrimSpace(rest)
	if !found || rest == "" {
		return "", "", false
	}
	return ref, rest, true
}

func usageError(name string) error {
	return fmt.Errorf("usage: %s", commands[name].usage)
}

func newExpressionID() string {
	id, _, _ := strings.Cut(uuid.NewString(), "-")
	return id
}

// Watch печатает изменения состояния сети и состава участников,
// пока не закроется views или не отменится ctx.
func Watch(ctx context.Context, out IO, views <-chan projection.View) {
	var last projection.View
	first := true

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			if first {
				first = false
				last = v
				continue
			}
			if v.Status != last.Status {
				out.Printf("* network: %s\n", v.Status)
			}
			reportPeers(out, last.Peers, v.Peers)
			last = v
		}
	}
}

func reportPeers(out IO, before, after []models.PeerPresence) {
	known := make(map[string]models.PeerPresence, len(before))
	for _, p := range before {
		known[p.PeerID] = p
	}

	for _, p := range after {
		prev, ok := known[p.PeerID]
		delete(known, p.PeerID)
		switch {
		case !ok:
			out.Printf("* %s joined\n", p.Label)
		case prev.Label != p.Label:
			out.Printf("* %s is now %s\n", prev.Label, p.Label)
		}
	}
	for _, p := range before {
		if _, gone := known[p.PeerID]; gone {
			out.Printf("* %s left\n", p.Label)
		}
	}
}
