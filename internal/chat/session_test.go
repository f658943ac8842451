package chat

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startPeer runs the session read loop and returns a channel closed when it ends.
func startPeer(p *pipePeer) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.session.run()
	}()
	return done
}

func send(t *testing.T, p *pipePeer, line string) {
	t.Helper()
	_, err := io.WriteString(p.client, line+"\n")
	require.NoError(t, err)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(lineTimeout):
		t.Fatal("session did not terminate")
	}
}

func TestSession_GroupChatAndWhisper(t *testing.T) {
	reg, b := newTestBroadcaster()
	alice := newPipePeer(t, reg, b, "alice")
	bob := newPipePeer(t, reg, b, "bob")
	carol := newPipePeer(t, reg, b, "carol")
	startPeer(alice)

	send(t, alice, "hi all")
	expectLine(t, bob.lines, "alice: hi all")
	expectLine(t, carol.lines, "alice: hi all")

	send(t, alice, "@bob psst")
	expectLine(t, bob.lines, "Whisper from alice: psst")
	expectSilence(t, carol.lines)
	expectSilence(t, alice.lines)
}

func TestSession_BareAtTokenRepliesNoMessage(t *testing.T) {
	reg, b := newTestBroadcaster()
	alice := newPipePeer(t, reg, b, "alice")
	bob := newPipePeer(t, reg, b, "bob")
	startPeer(alice)

	send(t, alice, "@bob")
	expectLine(t, alice.lines, ReplyNoMessage)
	expectSilence(t, bob.lines)
}

func TestSession_EmptyLineIsGroupChat(t *testing.T) {
	reg, b := newTestBroadcaster()
	alice := newPipePeer(t, reg, b, "alice")
	bob := newPipePeer(t, reg, b, "bob")
	startPeer(alice)

	send(t, alice, "")
	expectLine(t, bob.lines, "alice: ")
}

func TestSession_ExitRunsDepartureSequence(t *testing.T) {
	req := require.New(t)
	reg, b := newTestBroadcaster()
	alice := newPipePeer(t, reg, b, "alice")
	bob := newPipePeer(t, reg, b, "bob")
	done := startPeer(alice)

	// When alice sends /exit
	send(t, alice, "/exit")

	// Then alice is acknowledged and told to terminate
	expectLine(t, alice.lines, ReplyExiting)
	expectLine(t, alice.lines, ReplyTerminate)
	waitDone(t, done)

	// And bob sees the departure in order
	expectLine(t, bob.lines, "LEAVING: alice")
	expectLine(t, bob.lines, "alice has left the group chat.")
	expectLine(t, bob.lines, "ONLINE:bob")

	// And alice is gone for good
	_, ok := reg.Lookup("alice")
	req.False(ok)
	req.False(alice.session.Alive())
	req.ErrorIs(alice.session.Send("late"), ErrSessionClosed)
}

func TestSession_ExitAcceptsSurroundingSpaces(t *testing.T) {
	reg, b := newTestBroadcaster()
	alice := newPipePeer(t, reg, b, "alice")
	done := startPeer(alice)

	send(t, alice, "  /exit  ")
	expectLine(t, alice.lines, ReplyExiting)
	expectLine(t, alice.lines, ReplyTerminate)
	waitDone(t, done)
}

func TestSession_DisconnectRunsDepartureWithoutReply(t *testing.T) {
	req := require.New(t)
	reg, b := newTestBroadcaster()
	alice := newPipePeer(t, reg, b, "alice")
	bob := newPipePeer(t, reg, b, "bob")
	done := startPeer(alice)

	// When alice's client drops the connection
	req.NoError(alice.client.Close())
	waitDone(t, done)

	// Then bob sees the same departure sequence
	expectLine(t, bob.lines, "LEAVING: alice")
	expectLine(t, bob.lines, "alice has left the group chat.")
	expectLine(t, bob.lines, "ONLINE:bob")
	_, ok := reg.Lookup("alice")
	req.False(ok)
}

func TestSession_DepartRunsOnce(t *testing.T) {
	reg, b := newTestBroadcaster()
	alice := newPipePeer(t, reg, b, "alice")
	bob := newPipePeer(t, reg, b, "bob")

	alice.session.depart("exit")
	alice.session.depart("disconnect")

	expectLine(t, bob.lines, "LEAVING: alice")
	expectLine(t, bob.lines, "alice has left the group chat.")
	expectLine(t, bob.lines, "ONLINE:bob")
	expectSilence(t, bob.lines)
}
