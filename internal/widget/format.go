package widget

import (
	"strconv"
	"strings"
	"time"

	"github.com/rook-computer/lockscreen/internal/state"
)

// Formatted is a label text after variable substitution plus how often it
// has to be refreshed.
type Formatted struct {
	Text string
	// UpdateEvery is the refresh interval; zero means never.
	UpdateEvery time.Duration
	// AlwaysUpdate requests a new texture on every refresh even if Text
	// did not change, as command output is only known after running it.
	AlwaysUpdate     bool
	Cmd              bool
	AllowForceUpdate bool
}

type FormatEnv struct {
	User    string
	Now     time.Time
	Session state.Session
}

// FormatString expands label text. "cmd[update:<ms>,allow_force_update] <command>"
// marks the rest as a shell command; otherwise $USER, $TIME, $TIME12, $FAIL,
// $ATTEMPTS and $PROMPT are substituted.
func FormatString(in string, env FormatEnv) Formatted {
	var out Formatted
	if strings.HasPrefix(in, "cmd[") {
		if end := strings.IndexByte(in, ']'); end > 0 {
			for _, opt := range strings.Split(in[4:end], ",") {
				opt = strings.TrimSpace(opt)
				switch {
				case strings.HasPrefix(opt, "update:"):
					if ms, err := strconv.ParseUint(strings.TrimPrefix(opt, "update:"), 10, 64); err == nil {
						out.UpdateEvery = time.Duration(ms) * time.Millisecond
					}
				case opt == "allow_force_update":
					out.AllowForceUpdate = true
				}
			}
			out.AlwaysUpdate = true
			out.Cmd = true
			out.Text = strings.TrimSpace(in[end+1:])
			return out
		}
	}

	if strings.Contains(in, "$USER") {
		in = strings.ReplaceAll(in, "$USER", env.User)
	}
	if strings.Contains(in, "$TIME12") {
		in = strings.ReplaceAll(in, "$TIME12", env.Now.Format("03:04 PM"))
		out.UpdateEvery = time.Second
	}
	if strings.Contains(in, "$TIME") {
		in = strings.ReplaceAll(in, "$TIME", env.Now.Format("15:04"))
		out.UpdateEvery = time.Second
	}
	if strings.Contains(in, "$FAIL") {
		fail := ""
		if env.Session.DisplayFail {
			fail = env.Session.Fail.Text
		}
		in = strings.ReplaceAll(in, "$FAIL", fail)
		out.AllowForceUpdate = true
	}
	if strings.Contains(in, "$ATTEMPTS") {
		in = strings.ReplaceAll(in, "$ATTEMPTS", strconv.Itoa(env.Session.Attempts))
		out.AllowForceUpdate = true
	}
	if strings.Contains(in, "$PROMPT") {
		in = strings.ReplaceAll(in, "$PROMPT", env.Session.Prompt)
		out.AllowForceUpdate = true
	}
	out.Text = in
	return out
}
