package sink

import (
	"fmt"
	"io"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v2"

	"rawtwitch/internal/framer"
)

// Console renders chat traffic for a terminal.  Lines are parsed with
// go-twitch-irc; message types without a rendering are dropped unless
// ShowRaw is set.
type Console struct {
	Out io.Writer

	// ShowMembership prints JOIN and PART events.
	ShowMembership bool
	// ShowRaw prints every other line verbatim.
	ShowRaw bool
}

// HandleLine formats one line.
func (c *Console) HandleLine(line framer.Line) {
	if !line.Valid {
		fmt.Fprintf(c.Out, "?? %s\n", text(line))
		return
	}
	if out, ok := c.render(text(line)); ok {
		fmt.Fprintln(c.Out, out)
	}
}

// render formats raw.  ParseMessage indexes the first parameter of
// most commands without checking it exists, so a line such as a bare
// "NOTICE" panics; those are treated like any other unrendered line.
func (c *Console) render(raw string) (out string, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = strings.TrimSpace(raw), c.ShowRaw
		}
	}()

	switch msg := twitch.ParseMessage(raw).(type) {
	case *twitch.PrivateMessage:
		return fmt.Sprintf("#%s <%s> %s", msg.Channel, displayName(msg.User), msg.Message), true
	case *twitch.WhisperMessage:
		return fmt.Sprintf("[whisper] <%s> %s", displayName(msg.User), msg.Message), true
	case *twitch.NoticeMessage:
		return fmt.Sprintf("#%s -!- %s", msg.Channel, msg.Message), true
	case *twitch.UserNoticeMessage:
		out := fmt.Sprintf("#%s -!- %s", msg.Channel, msg.SystemMsg)
		if msg.Message != "" {
			out += " | " + msg.Message
		}
		return out, true
	case *twitch.ClearChatMessage:
		switch {
		case msg.TargetUsername == "":
			return fmt.Sprintf("#%s -!- chat cleared", msg.Channel), true
		case msg.BanDuration > 0:
			return fmt.Sprintf("#%s -!- %s timed out for %ds", msg.Channel, msg.TargetUsername, msg.BanDuration), true
		default:
			return fmt.Sprintf("#%s -!- %s banned", msg.Channel, msg.TargetUsername), true
		}
	case *twitch.UserJoinMessage:
		return fmt.Sprintf("#%s --> %s", msg.Channel, msg.User), c.ShowMembership
	case *twitch.UserPartMessage:
		return fmt.Sprintf("#%s <-- %s", msg.Channel, msg.User), c.ShowMembership
	}
	return strings.TrimSpace(raw), c.ShowRaw
}

// displayName prefers the display name and falls back to the login.
func displayName(u twitch.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}
