// cmd/simulate plays all-bot games in memory and prints the final scores.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coder/quartz"
	"github.com/jason-s-yu/suspense/internal/game"
	"github.com/jason-s-yu/suspense/internal/models"
	"github.com/jason-s-yu/suspense/internal/store"
	"github.com/sirupsen/logrus"
)

type CLI struct {
	Players int    `default:"4" help:"Number of bots at the table (2-4)"`
	Turns   int    `default:"5" help:"Rounds to play (1-20)"`
	Games   int    `default:"1" help:"Number of games to simulate"`
	Seed    uint64 `default:"0" help:"RNG seed (0 for random)"`
	Verbose bool   `short:"v" help:"Log every game event"`
}

// logChannel prints table events instead of delivering them to clients.
type logChannel struct {
	logger logrus.FieldLogger
}

func (c logChannel) AddToGroup(string, string) {}

func (c logChannel) NotifyGroup(_ context.Context, group, event string, payload any) error {
	if event == game.EventBroadcastMessage {
		if msg, ok := payload.(game.ChatMessage); ok {
			c.logger.WithField("group", group).Debugf("%s: %s", msg.Sender, msg.Message)
			return nil
		}
	}
	c.logger.WithFields(logrus.Fields{"group": group, "event": event}).Trace("event")
	return nil
}

func (c logChannel) NotifyOne(context.Context, string, string, any) error { return nil }

func (c logChannel) RequestOne(context.Context, string, string, any) (json.RawMessage, error) {
	return nil, errors.New("simulation has no human seats")
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli)

	if cli.Seed == 0 {
		cli.Seed = rand.Uint64()
	}
	if cli.Players < 2 || cli.Players > models.MaxSeats {
		ctx.Fatalf("players must be between 2 and %d", models.MaxSeats)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if cli.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	fmt.Printf("Simulating %d game(s): %d bots, %d rounds (seed: %d)\n", cli.Games, cli.Players, cli.Turns, cli.Seed)

	mem := store.NewMemoryStore(quartz.NewReal())
	var games uint64
	manager := game.NewManager(game.ManagerConfig{
		Sessions: &store.Sessions{Store: mem},
		Players:  &store.Players{Store: mem},
		Channel:  logChannel{logger: logger},
		Logger:   logger,
		NewRand: func() *rand.Rand {
			games++
			return rand.New(rand.NewPCG(cli.Seed, games))
		},
		InstantBots: true,
	})
	defer manager.Close()

	start := time.Now()
	for i := 0; i < cli.Games; i++ {
		final, err := playGame(context.Background(), manager, cli.Players, cli.Turns)
		ctx.FatalIfErrorf(err)
		printGame(i+1, final)
	}
	fmt.Printf("Done in %s\n", time.Since(start).Round(time.Millisecond))
}

// playGame seats n bots, the first as leader, and runs the game to the end.
func playGame(ctx context.Context, m *game.Manager, n, turns int) (game.PublicState, error) {
	bots := make([]*models.Player, n)
	for i := range bots {
		p, err := m.CreatePlayer(ctx, "", true)
		if err != nil {
			return game.PublicState{}, err
		}
		bots[i] = p
	}

	s, err := m.CreateGame(ctx, bots[0].ID, turns)
	if err != nil {
		return game.PublicState{}, err
	}
	for i, p := range bots {
		if _, err := m.JoinGame(ctx, s.ID, p.ID, i == 0, ""); err != nil {
			return game.PublicState{}, err
		}
	}

	eng, err := m.StartGame(ctx, s.ID, bots[0].ID)
	if err != nil {
		return game.PublicState{}, err
	}
	<-eng.Done()
	if err := eng.Err(); err != nil {
		return game.PublicState{}, err
	}
	return eng.Snapshot(), nil
}

func printGame(n int, final game.PublicState) {
	fmt.Printf("\nGame %d (%s)\n", n, final.GameID)
	for _, seat := range final.Seats {
		marker := " "
		if final.WinnerID != nil && seat.PlayerID == *final.WinnerID {
			marker = "*"
		}
		fmt.Printf("%s %-10s %4d points\n", marker, seat.Name, seat.Score)
	}
}
