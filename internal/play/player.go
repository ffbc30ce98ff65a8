package play

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/loopcap/internal/process"
)

// Spawner launches the player process. *process.Supervisor implements it.
type Spawner interface {
	Spawn(spec process.Spec) (*process.Handle, error)
}

// Player plays recorded WAV files through the first external player found.
type Player struct {
	spawner Spawner

	// players in order of preference
	players  []string
	lookPath func(string) (string, error)
}

func New(spawner Spawner) *Player {
	return &Player{
		spawner:  spawner,
		players:  []string{"vlc", "mpv", "ffplay", "aplay", "afplay"},
		lookPath: exec.LookPath,
	}
}

// Play starts playback of audioFile and returns without waiting for it to
// finish. The player is terminated with the supervisor.
func (p *Player) Play(audioFile string) (*process.Handle, error) {
	if _, err := os.Stat(audioFile); err != nil {
		return nil, fmt.Errorf("audio file not found: %s", audioFile)
	}

	player, err := p.findAudioPlayer()
	if err != nil {
		return nil, fmt.Errorf("no suitable audio player found: %w", err)
	}

	h, err := p.spawner.Spawn(process.Spec{
		Kind:    process.KindPlayer,
		Command: player,
		Args:    playerArgs(player, audioFile),
	})
	if err != nil {
		return nil, fmt.Errorf("playback failed with %s: %w", player, err)
	}

	slog.Info("Playback started", "file", audioFile, "player", player)
	return h, nil
}

func playerArgs(player, audioFile string) []string {
	switch player {
	case "vlc":
		return []string{"--intf", "dummy", "--play-and-exit", audioFile}
	case "mpv":
		return []string{"--no-video", audioFile}
	case "ffplay":
		return []string{"-nodisp", "-autoexit", audioFile}
	default:
		// aplay and afplay take the file alone
		return []string{audioFile}
	}
}

func (p *Player) findAudioPlayer() (string, error) {
	for _, player := range p.players {
		if _, err := p.lookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(p.players, ", "))
}
