// Command peer joins a group-watch room from the terminal. Lines typed on
// stdin are sent as chat; "/play N", "/pause N" and "/seek N" drive playback.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/GroupWatch/internal/client"
)

type logPlayer struct{}

func (logPlayer) SeekTo(s float64) { log.Info().Float64("position", s).Msg("player seek") }
func (logPlayer) Play()            { log.Info().Msg("player play") }
func (logPlayer) Pause()           { log.Info().Msg("player pause") }

func main() {
	server := pflag.String("server", "http://localhost:8080", "group-watch server base URL")
	room := pflag.StringP("room", "r", "", "room id to join")
	name := pflag.StringP("name", "n", "", "display name")
	host := pflag.Bool("host", false, "join as host")
	level := pflag.String("log-level", "info", "log level")
	pflag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if lvl, err := zerolog.ParseLevel(*level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if *room == "" {
		log.Fatal().Msg("--room is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	base, err := url.Parse(*server)
	if err != nil {
		log.Fatal().Err(err).Msg("bad server url")
	}

	ice, err := fetchICE(ctx, base)
	if err != nil {
		log.Warn().Err(err).Msg("ice servers unavailable, using host candidates only")
	}

	s, err := client.Dial(ctx, client.Options{
		URL:    wsURL(base),
		RoomID: *room,
		Name:   *name,
		IsHost: *host,
		Peers:  client.PionFactory{Config: webrtc.Configuration{ICEServers: ice}},
		Player: logPlayer{},
		Handlers: client.Handlers{
			OnJoined: func(roomID string, isHost bool) {
				log.Info().Str("room", roomID).Bool("host", isHost).Msg("joined")
			},
			OnParticipants: func(n int) { log.Info().Int("count", n).Msg("participants") },
			OnChat: func(author, message string) {
				fmt.Printf("<%s> %s\n", author, message)
			},
			OnPeer: func(id string, initiator bool) {
				log.Debug().Str("peer", id).Bool("initiator", initiator).Msg("peer")
			},
			OnError: func(code string) { log.Warn().Str("code", code).Msg("server rejected frame") },
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}

	go readInput(s)

	if err := s.Run(ctx); err != nil {
		log.Error().Err(err).Msg("session ended")
		os.Exit(1)
	}
	log.Info().Msg("left room")
}

func wsURL(base *url.URL) string {
	u := *base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}

func fetchICE(ctx context.Context, base *url.URL) ([]webrtc.ICEServer, error) {
	u := base.JoinPath("api", "ice")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}

	var body struct {
		ICEServers []webrtc.ICEServer `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode ice servers: %w", err)
	}
	return body.ICEServers, nil
}

func readInput(s *client.Session) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := command(s, line); err != nil {
			log.Warn().Err(err).Msg("send failed")
		}
	}
}

func command(s *client.Session, line string) error {
	if !strings.HasPrefix(line, "/") {
		return s.SendChat(line)
	}
	fields := strings.Fields(line)
	pos := 0.0
	if len(fields) > 1 {
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("bad position %q: %w", fields[1], err)
		}
		pos = v
	}
	switch fields[0] {
	case "/play":
		return s.Play(pos)
	case "/pause":
		return s.Pause(pos)
	case "/seek":
		return s.Seek(pos)
	case "/peers":
		log.Info().Strs("peers", s.Peers()).Int("count", s.Participants()).Msg("peers")
		return nil
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}
