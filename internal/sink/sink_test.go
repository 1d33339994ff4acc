package sink

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rawtwitch/internal/framer"
)

func feed(t *testing.T, stream string) []framer.Line {
	t.Helper()
	lines := framer.New().Feed([]byte(stream))
	require.NotEmpty(t, lines, "no complete lines in %q", stream)
	return lines
}

func TestRaw(t *testing.T) {
	var out bytes.Buffer
	r := &Raw{Out: &out}
	for _, l := range feed(t, ":tmi.twitch.tv 001 bot :Welcome\r\nbad\xff\r\n") {
		r.HandleLine(l)
	}
	assert.Equal(t, ":tmi.twitch.tv 001 bot :Welcome\n\"bad\\xff\"\n", out.String())
}

func TestConsole_Render(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			"privmsg with tags",
			"@badge-info=;badges=;color=#FF0000;display-name=Alice;emotes=;id=abc;mod=0;room-id=1;subscriber=0;tmi-sent-ts=1600000000000;turbo=0;user-id=42;user-type= :alice!alice@alice.tmi.twitch.tv PRIVMSG #chan :hello there\r\n",
			"#chan <Alice> hello there\n",
		},
		{
			"privmsg without display name",
			":bob!bob@bob.tmi.twitch.tv PRIVMSG #chan :hi\r\n",
			"#chan <bob> hi\n",
		},
		{
			"notice",
			"@msg-id=slow_off :tmi.twitch.tv NOTICE #chan :This room is no longer in slow mode.\r\n",
			"#chan -!- This room is no longer in slow mode.\n",
		},
		{
			"membership hidden",
			":carol!carol@carol.tmi.twitch.tv JOIN #chan\r\n",
			"",
		},
		{
			"numeric hidden",
			":tmi.twitch.tv 001 bot :Welcome, GLHF!\r\n",
			"",
		},
		{
			"invalid utf-8",
			"caf\xe9\r\n",
			"?? \"caf\\xe9\"\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := &Console{Out: &out}
			for _, l := range feed(t, tt.line) {
				c.HandleLine(l)
			}
			assert.Equal(t, tt.want, out.String())
		})
	}
}

// TestConsole_CommandsWithoutParams feeds commands that are missing
// their channel or target.  They must not bring the sink down, and are
// shown verbatim only when raw output is on.
func TestConsole_CommandsWithoutParams(t *testing.T) {
	lines := []string{
		"NOTICE",
		":tmi.twitch.tv NOTICE",
		":a PRIVMSG",
		"PRIVMSG",
		"CLEARCHAT",
		"CLEARMSG",
		"USERNOTICE",
		"ROOMSTATE",
		"USERSTATE",
		"WHISPER",
		":carol!carol@carol.tmi.twitch.tv JOIN",
		":carol!carol@carol.tmi.twitch.tv PART",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			var hidden, shown bytes.Buffer
			quiet := &Console{Out: &hidden, ShowMembership: true}
			raw := &Console{Out: &shown, ShowMembership: true, ShowRaw: true}

			l := feed(t, line+"\r\n")[0]
			require.NotPanics(t, func() { quiet.HandleLine(l) })
			require.NotPanics(t, func() { raw.HandleLine(l) })

			// Lines the parser does handle may still render; the ones it
			// cannot are shown raw.
			if hidden.Len() == 0 {
				assert.Equal(t, line+"\n", shown.String())
			}
		})
	}
}

func TestConsole_ShowMembershipAndRaw(t *testing.T) {
	var out bytes.Buffer
	c := &Console{Out: &out, ShowMembership: true, ShowRaw: true}
	stream := ":carol!carol@carol.tmi.twitch.tv JOIN #chan\r\n" +
		":tmi.twitch.tv 001 bot :Welcome, GLHF!\r\n"
	for _, l := range feed(t, stream) {
		c.HandleLine(l)
	}
	assert.Equal(t, "#chan --> carol\n:tmi.twitch.tv 001 bot :Welcome, GLHF!\n", out.String())
}

// TestConsole_KeepsWorkingAfterBadLine checks a malformed line does not
// disturb rendering of the lines after it.
func TestConsole_KeepsWorkingAfterBadLine(t *testing.T) {
	var out bytes.Buffer
	c := &Console{Out: &out}
	stream := ":tmi.twitch.tv NOTICE\r\n:bob!bob@bob.tmi.twitch.tv PRIVMSG #chan :still here\r\n"
	for _, l := range feed(t, stream) {
		c.HandleLine(l)
	}
	assert.True(t, strings.HasSuffix(out.String(), "#chan <bob> still here\n"), "output = %q", out.String())
}

// TestExec_PipesLines runs cat as the child and checks every line
// arrives in order.
func TestExec_PipesLines(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	var out bytes.Buffer
	e := &Exec{Command: "cat", Stdout: &out}
	require.NoError(t, e.Start(context.Background()))
	for _, l := range feed(t, "one\r\ntwo\r\n") {
		e.HandleLine(l)
	}
	require.NoError(t, e.Close())
	assert.Equal(t, "one\ntwo\n", out.String())
}

func TestExec_NoCommand(t *testing.T) {
	e := &Exec{}
	require.Error(t, e.Start(context.Background()))

	// Unstarted sinks ignore lines and close cleanly.
	e.HandleLine(framer.Line{Text: "x\r\n", Valid: true})
	assert.NoError(t, e.Close())
}
