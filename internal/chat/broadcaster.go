package chat

import (
	"log/slog"
	"strings"

	"github.com/samber/lo"
)

// Broadcaster routes lines between registered sessions. Each delivery takes
// only the receiver's write lock; a failed delivery is logged and skipped.
type Broadcaster struct {
	registry *Registry
	logger   *slog.Logger
}

func NewBroadcaster(registry *Registry, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{registry: registry, logger: logger}
}

// Broadcast sends message to every registered session except from. With
// prefix the line reads "<sender>: <message>", otherwise it goes out verbatim.
func (b *Broadcaster) Broadcast(from *Session, message string, prefix bool) {
	// Whispers never reach this path; kept for bare "@name" lines.
	if strings.HasPrefix(message, "@") {
		b.reply(from, ReplyNoMessage)
		return
	}

	line := message
	if prefix {
		line = chatLine(from.Username(), message)
	}
	b.fanout(from, line)
}

// Whisper delivers "@<receiver> <text>" to the receiver only.
func (b *Broadcaster) Whisper(from *Session, rawLine string) {
	head, payload, found := strings.Cut(rawLine, " ")
	if !found {
		b.reply(from, ReplyNoMessage)
		return
	}
	if payload == "" {
		b.reply(from, ReplyNoMessage)
		return
	}

	receiver := strings.TrimPrefix(head, "@")
	to, ok := b.registry.Lookup(receiver)
	if !ok {
		b.logger.Debug("whisper to unknown receiver", "from", from.Username(), "to", receiver)
		b.reply(from, ReplyClientNotFound)
		return
	}
	b.deliver(to, whisperLine(from.Username(), payload))
}

// AnnounceJoin tells everyone but s that s joined, then refreshes the online
// list for all sessions including s.
func (b *Broadcaster) AnnounceJoin(s *Session) {
	MessagesTotal.WithLabelValues(metricJoin).Inc()
	b.Broadcast(s, joinedLine(s.Username()), false)
	b.PushOnline()
}

// AnnounceLeave runs after s has been unregistered.
func (b *Broadcaster) AnnounceLeave(s *Session) {
	name := s.Username()
	b.Broadcast(s, leavingLine(name), false)
	b.Broadcast(s, leftLine(name), false)
	b.PushOnline()
}

// PushOnline sends the current membership to every registered session. The
// list is read under each receiver's write lock, so the last ONLINE line a
// client gets matches the latest membership change.
func (b *Broadcaster) PushOnline() {
	online := func() string { return OnlineLine(b.registry.Snapshot()) }
	for _, s := range b.registry.Sessions() {
		if err := s.out.WriteLineFunc(online); err != nil {
			b.deliveryFailed(s, err)
		}
	}
}

func (b *Broadcaster) fanout(except *Session, line string) {
	recipients := lo.Filter(b.registry.Sessions(), func(s *Session, _ int) bool {
		return s != except && s.Alive()
	})
	for _, s := range recipients {
		b.deliver(s, line)
	}
}

func (b *Broadcaster) deliver(to *Session, line string) {
	if err := to.Send(line); err != nil {
		b.deliveryFailed(to, err)
	}
}

func (b *Broadcaster) deliveryFailed(to *Session, err error) {
	DeliveryFailures.Inc()
	b.logger.Warn("delivery failed", "to", to.Username(), "error", err)
}

func (b *Broadcaster) reply(to *Session, line string) {
	if err := to.Send(line); err != nil {
		b.logger.Debug("reply failed", "to", to.Username(), "error", err)
	}
}
