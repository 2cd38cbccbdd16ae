package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func msg(author, body string) Message {
	return Message{Author: author, Body: body, Kind: KindUser}
}

func bodies(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Body)
	}
	return out
}

func TestMessageBuffer_DefaultsCapacity(t *testing.T) {
	require.Equal(t, DefaultCapacity, NewMessageBuffer(0).Cap())
	require.Equal(t, DefaultCapacity, NewMessageBuffer(-3).Cap())
	require.Equal(t, 7, NewMessageBuffer(7).Cap())
}

func TestMessageBuffer_EvictsOldestAtCapacity(t *testing.T) {
	b := NewMessageBuffer(50)
	for i := 1; i <= 50; i++ {
		_, evicted := b.Insert(msg("a", fmt.Sprintf("m%d", i)))
		require.Zero(t, evicted)
	}
	require.Equal(t, 50, b.Len())

	_, evicted := b.Insert(msg("a", "m51"))
	require.Equal(t, 1, evicted)
	require.Equal(t, 50, b.Len())

	snap := b.Snapshot()
	require.Equal(t, "m2", snap[0].Body)
	require.Equal(t, "m51", snap[49].Body)
}

func TestMessageBuffer_SizeIsMinOfInsertsAndCapacity(t *testing.T) {
	for _, tc := range []struct{ capacity, history, inbound int }{
		{5, 2, 1},
		{5, 2, 3},
		{5, 2, 10},
		{5, 0, 0},
		{3, 3, 7},
	} {
		t.Run(fmt.Sprintf("cap%d_h%d_m%d", tc.capacity, tc.history, tc.inbound), func(t *testing.T) {
			b := NewMessageBuffer(tc.capacity)
			for i := 0; i < tc.history; i++ {
				b.Insert(msg("h", fmt.Sprintf("h%d", i)))
			}
			var inbound []string
			for i := 0; i < tc.inbound; i++ {
				body := fmt.Sprintf("s%d", i)
				inbound = append(inbound, body)
				b.Insert(msg("s", body))
			}

			want := min(tc.history+tc.inbound, tc.capacity)
			require.Equal(t, want, b.Len())

			tail := min(tc.inbound, tc.capacity)
			snap := bodies(b.Snapshot())
			require.Equal(t, inbound[len(inbound)-tail:], snap[len(snap)-tail:])
		})
	}
}

func TestMessageBuffer_SeqIsMonotonic(t *testing.T) {
	b := NewMessageBuffer(2)
	first, _ := b.Insert(msg("a", "1"))
	second, _ := b.Insert(msg("a", "2"))
	third, _ := b.Insert(msg("a", "3"))
	require.Equal(t, uint64(1), first.Seq)
	require.Equal(t, uint64(2), second.Seq)
	require.Equal(t, uint64(3), third.Seq)

	b.Reset()
	require.Zero(t, b.Len())
	fourth, _ := b.Insert(msg("a", "4"))
	require.Equal(t, uint64(4), fourth.Seq)
}

func TestMessageBuffer_SnapshotIsACopy(t *testing.T) {
	b := NewMessageBuffer(3)
	b.Insert(msg("a", "x"))
	snap := b.Snapshot()
	snap[0].Body = "mutated"

	last, ok := b.Last()
	require.True(t, ok)
	require.Equal(t, "x", last.Body)
}
