package playback

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/swingdeck/internal/domain/queue"
)

// LogPlayer logs every committed queue.
type LogPlayer struct{}

// OnQueueCommitted logs the track playback should start at.
func (LogPlayer) OnQueueCommitted(state queue.State) {
	cur := state.Current()
	if cur == nil {
		zlog.Info().Msgf("queue cleared: generation=%d", state.Generation)
		return
	}
	label := ""
	if state.Origin != nil {
		label = state.Origin.Label()
	}
	zlog.Info().Msgf("now playing %s: %s - %s (source=%s %q, generation=%d)",
		state.Position(), cur.Track.ArtistNames(), cur.Track.Title,
		queue.KindOf(state.Origin), label, state.Generation)
}

// HookPlayer runs shell commands whenever a queue is committed.
// The current track is exposed to the commands through SWINGDECK_* variables.
type HookPlayer struct {
	commands []string
	timeout  time.Duration
	run      func(ctx context.Context, command string, env []string) error
}

// NewHookPlayer creates a hook player. A zero timeout means 30 seconds.
func NewHookPlayer(commands []string, timeout time.Duration) *HookPlayer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HookPlayer{
		commands: commands,
		timeout:  timeout,
		run:      runShell,
	}
}

// OnQueueCommitted starts the hooks in the background so a slow command
// never delays the next commit.
func (p *HookPlayer) OnQueueCommitted(state queue.State) {
	if len(p.commands) == 0 {
		return
	}
	env := hookEnv(state)
	go p.execute(state.Generation, env)
}

func (p *HookPlayer) execute(generation uint64, env []string) {
	zlog.Debug().Msgf("executing queue hooks (%d commands, generation=%d)", len(p.commands), generation)

	for _, command := range p.commands {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.run(ctx, command, env); err != nil {
			zlog.Error().Err(err).Msgf("failed to execute hook: %s", command)
		}
		cancel()
	}
}

// hookEnv builds the environment passed to hook commands.
func hookEnv(state queue.State) []string {
	env := []string{
		"SWINGDECK_GENERATION=" + strconv.FormatUint(state.Generation, 10),
		"SWINGDECK_QUEUE_LEN=" + strconv.Itoa(state.Len()),
		"SWINGDECK_QUEUE_POS=" + strconv.Itoa(state.CurrentIndex),
		"SWINGDECK_SOURCE_KIND=" + queue.KindOf(state.Origin).String(),
	}
	if state.Origin != nil {
		env = append(env, "SWINGDECK_SOURCE_LABEL="+state.Origin.Label())
	}
	if cur := state.Current(); cur != nil {
		env = append(env,
			"SWINGDECK_TRACK_HASH="+cur.Track.TrackHash,
			"SWINGDECK_TRACK_TITLE="+cur.Track.Title,
			"SWINGDECK_TRACK_ARTISTS="+cur.Track.ArtistNames(),
			"SWINGDECK_TRACK_FILEPATH="+cur.Track.Filepath,
		)
	}
	return env
}

// runShell runs command with sh -c so hooks may use pipes and redirection.
func runShell(ctx context.Context, command string, env []string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "hook %q", command)
	}
	return nil
}
